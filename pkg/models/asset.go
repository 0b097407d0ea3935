package models

// HeroAsset is the primary image resolved for a code.
type HeroAsset struct {
	Src   string `json:"src"`
	IsSVG bool   `json:"is_svg"`
}

// IndexEntry is one row of the bundled static index.
type IndexEntry struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Series string `json:"series"`
}
