// Package responder produces the guest-facing reply for a thread, and for
// note-producing categories may record a staff action.
package responder

import (
	"context"

	"github.com/brightstay/concierge/internal/models"
)

// Result is the outcome of handling one thread turn. ActionRecord is set
// only when a staff-facing action was created.
type Result struct {
	Reply        string
	ActionRecord *models.ActionRecord
}

type Responder interface {
	// Respond generates the reply for message in the context of thread.
	// Errors propagate as a flow failure; the caller keeps the thread
	// open and falls back to a safe reply.
	Respond(ctx context.Context, thread *models.Thread, message string) (*Result, error)
}
