package sync

import "time"

const (
	EventInvalidated = "catalog.invalidated"
	EventWelcome     = "welcome"
)

// CatalogEvent tells subscribers which cached output went stale.
type CatalogEvent struct {
	Type  string    `json:"type"`
	Code  string    `json:"code,omitempty"`
	Tags  []string  `json:"tags,omitempty"`
	Paths []string  `json:"paths,omitempty"`
	At    time.Time `json:"at"`
}
