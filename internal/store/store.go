// Package store owns all conversation threads, keyed by session code.
package store

import (
	"context"
	"time"

	"github.com/brightstay/concierge/internal/models"
)

// ThreadStore is the single owner of thread state. Read methods return
// snapshots; callers never hold a mutable reference into the store.
//
// Mutations are atomic per session, but the store does not order
// concurrent mutations for one session: the deployment must route all
// messages of a session through a single logical writer.
type ThreadStore interface {
	// CreateThread allocates a thread with a fresh creation-ordered id,
	// seeds its context, and appends initialMessage as the first user
	// turn. The thread starts open and active.
	CreateThread(ctx context.Context, sessionCode string, category models.ThreadCategory, seed models.ThreadContext, initialMessage string) (*models.Thread, error)

	// AddMessage appends a turn to a thread. An unknown id (e.g. evicted
	// mid-flight) is a logged no-op, not an error: the next unmatched
	// message simply spawns a new thread.
	AddMessage(ctx context.Context, threadID int64, content string, role models.MessageRole) error

	// SetStatus transitions a thread's status. Entering a terminal status
	// clears the active flag. Unknown ids and transitions out of a
	// terminal status are a logged no-op.
	SetStatus(ctx context.Context, threadID int64, status models.ThreadStatus) error

	// MergeContext shallow-merges the populated fields of partial into
	// the thread's context.
	MergeContext(ctx context.Context, threadID int64, partial models.ThreadContext) error

	ListBySession(ctx context.Context, sessionCode string) ([]*models.Thread, error)
	ListActive(ctx context.Context, sessionCode string) ([]*models.Thread, error)

	// Evict drops threads older than maxAge unless they are still active
	// and non-terminal, and drops sessions whose thread list becomes
	// empty. Overlapping sweeps are skipped. Returns threads removed.
	Evict(ctx context.Context, maxAge time.Duration) (int, error)

	Close() error
}

// mergeContext applies the populated fields of partial onto dst.
// Shared by the store implementations.
func mergeContext(dst *models.ThreadContext, partial models.ThreadContext) {
	if len(partial.Keywords) > 0 {
		dst.Keywords = unionKeywords(dst.Keywords, partial.Keywords)
	}
	if partial.Request != nil {
		if dst.Request == nil {
			dst.Request = &models.RequestContext{}
		}
		if partial.Request.ItemName != "" {
			dst.Request.ItemName = partial.Request.ItemName
		}
		if partial.Request.Quantity != 0 {
			dst.Request.Quantity = partial.Request.Quantity
		}
		if partial.Request.TimingPreference != "" {
			dst.Request.TimingPreference = partial.Request.TimingPreference
		}
	}
	if partial.Complaint != nil {
		if dst.Complaint == nil {
			dst.Complaint = &models.ComplaintContext{}
		}
		if partial.Complaint.Summary != "" {
			dst.Complaint.Summary = partial.Complaint.Summary
		}
	}
	if partial.Faq != nil {
		if dst.Faq == nil {
			dst.Faq = &models.FaqContext{}
		}
		if partial.Faq.Query != "" {
			dst.Faq.Query = partial.Faq.Query
		}
		if len(partial.Faq.Keywords) > 0 {
			dst.Faq.Keywords = unionKeywords(dst.Faq.Keywords, partial.Faq.Keywords)
		}
	}
	if partial.General != nil {
		if dst.General == nil {
			dst.General = &models.GeneralContext{}
		}
		if partial.General.LastResponse != "" {
			dst.General.LastResponse = partial.General.LastResponse
		}
	}
}

func unionKeywords(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
