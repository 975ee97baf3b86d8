package credentials

import "time"

// keyFile is the on-disk layout of credentials.toml.
type keyFile struct {
	Version int              `toml:"version"`
	Keys    map[string]Entry `toml:"keys"`
}

// Entry is one stored summarizer key.
type Entry struct {
	APIKey  string    `toml:"api_key"`
	SavedAt time.Time `toml:"saved_at"`
}
