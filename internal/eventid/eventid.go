// Package eventid generates short unique event identifiers.
package eventid

import "github.com/google/uuid"

// Length is the number of characters in a generated identifier.
const Length = 8

// New returns a short identifier derived from a random UUID. Eight hex
// characters are enough for a single guild's worth of events while staying
// easy to type in a command; callers that store identifiers must handle the
// unlikely collision by calling New again.
func New() string {
	return uuid.NewString()[:Length]
}
