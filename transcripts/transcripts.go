// Package transcripts keeps the locally persisted list of transcription results.
//
// The whole collection lives under a single named Slot as one JSON document.
// Read failures degrade to an empty list while write failures are returned to
// the caller, see Store.
package transcripts

import (
	"errors"
	"time"
)

// DefaultKey is the slot key the collection is stored under.
const DefaultKey = "transcripts"

var (
	// ErrStorageWrite is wrapped by every error caused by a failed write to the slot.
	ErrStorageWrite = errors.New("transcripts: storage write failed")

	// ErrStorageRead wraps unreadable or corrupt slot contents. Store.List never
	// returns it; it only shows up in logs.
	ErrStorageRead = errors.New("transcripts: storage read failed")
)

type (
	// Transcript is one completed speech-to-text result.
	Transcript struct {
		ID         string    `json:"id"`
		Transcript string    `json:"transcript"`
		Summary    *string   `json:"summary"`
		CreatedAt  time.Time `json:"createdAt"`
		// Duration is the recording length in seconds, when it was tracked.
		Duration *float64 `json:"duration,omitempty"`
	}
)

// SummaryText returns the summary or "" when there is none.
func (t Transcript) SummaryText() string {
	if t.Summary == nil {
		return ""
	}
	return *t.Summary
}
