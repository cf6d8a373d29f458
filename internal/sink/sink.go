// Package sink persists chat transcripts and staff action records. It is
// write-only from the router's point of view: the thread store remains
// the single owner of live conversation state.
package sink

import (
	"context"

	"github.com/brightstay/concierge/internal/models"
)

type Sink interface {
	RecordTranscript(ctx context.Context, entry models.TranscriptEntry) error
	RecordAction(ctx context.Context, record models.ActionRecord) error
	Close() error
}
