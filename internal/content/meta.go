package content

import "time"

type SourceKind string

const (
	SourceUnknown SourceKind = "unknown"
	SourceDir     SourceKind = "dir"
	SourceBundle  SourceKind = "bundle"
)

type Meta struct {
	// Fingerprint identifies the source revision the snapshot was built from.
	Fingerprint string `json:"fingerprint,omitempty"`
	// Hash is the SHA-256 over every entry's collection, ID and source digest.
	Hash    string     `json:"hash,omitempty"`
	Source  SourceKind `json:"source,omitempty"`
	BuiltAt time.Time  `json:"built_at,omitempty"`
}
