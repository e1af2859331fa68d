package domain

import "time"

// ManifestEntry records the last successful download of a file.
type ManifestEntry struct {
	Path      string    `json:"path"`
	SourceID  string    `json:"source_id"`
	URL       string    `json:"url"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256"`
	FetchedAt time.Time `json:"fetched_at"`
}
