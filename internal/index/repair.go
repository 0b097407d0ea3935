package index

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// mojibake left by a historical UTF-8 -> Latin-1 -> UTF-8 double encoding.
// Longer sequences come first so they win over their prefixes.
var mojibake = strings.NewReplacer(
	"â€™", "’",
	"â€˜", "‘",
	"â€œ", "“",
	"â€\u009d", "”",
	"â€“", "–",
	"â€”", "—",
	"â€¦", "…",
	"â‚¬", "€",
	"â„¢", "™",
	"Ã©", "é",
	"Ã¨", "è",
	"Ãª", "ê",
	"Ã«", "ë",
	"Ã\u00a0", "à",
	"Ã¢", "â",
	"Ã¤", "ä",
	"Ã§", "ç",
	"Ã®", "î",
	"Ã¯", "ï",
	"Ã´", "ô",
	"Ã¶", "ö",
	"Ã»", "û",
	"Ã¹", "ù",
	"Ã¼", "ü",
	"Ã‰", "É",
	"Ãˆ", "È",
	"ÃŠ", "Ê",
	"Ã€", "À",
	"Ã‡", "Ç",
	"Å“", "œ",
	"Å’", "Œ",
	"Â°", "°",
	"Â«", "«",
	"Â»", "»",
	"Â\u00a0", " ",
)

var (
	spacedNumberSuffix = regexp.MustCompile(`\s+\d{1,4}$`)
	gluedNumberSuffix  = regexp.MustCompile(`(\p{Ll})\d{1,4}$`)
	hasLetter          = regexp.MustCompile(`\p{L}`)
)

// RepairText fixes known mis-encoded accents, strips a stray trailing page
// number, collapses whitespace and NFC-normalizes. It is idempotent.
// NFC is stable after the first pass and every other step only shortens the
// text, so the loop ends.
func RepairText(s string) string {
	for {
		next := repairOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func repairOnce(s string) string {
	s = norm.NFC.String(s)
	s = mojibake.Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	return stripNumberSuffix(s)
}

func stripNumberSuffix(s string) string {
	var cut string
	switch {
	case spacedNumberSuffix.MatchString(s):
		cut = spacedNumberSuffix.ReplaceAllString(s, "")
	case gluedNumberSuffix.MatchString(s):
		cut = gluedNumberSuffix.ReplaceAllString(s, "$1")
	default:
		return s
	}
	// never reduce a title to bare punctuation or nothing
	if !hasLetter.MatchString(cut) {
		return s
	}
	return strings.TrimSpace(cut)
}
