package ga

import (
	"crypto/sha256"
	"encoding/hex"

	json "github.com/goccy/go-json"
)

// RecordHash generates the SHA-256 hex digest used as the primary key for a
// report record. The digest covers a UTF-8 encoded JSON list of:
//   - the view id of the report
//   - the dimension values, in the order returned by the API
//
// For streams without a ga:date dimension the caller appends the report
// window's start date to the dimension values first, so records from
// different windows never collide.
//
// WARNING: the composition and ordering of this list is the source of the
// primary key. Any change invalidates every previously emitted key and
// requires a major version bump.
func RecordHash(viewID string, dimensions []string) string {
	source := make([]string, 0, len(dimensions)+1)
	source = append(source, viewID)
	source = append(source, dimensions...)

	payload, _ := json.Marshal(source)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
