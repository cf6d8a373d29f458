// Package dispatcher drives the per-message routing loop: classify,
// match or spawn threads, pick the primary thread, invoke the flow
// handler and fold its result back into thread state.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/classifier"
	"github.com/brightstay/concierge/internal/keywords"
	"github.com/brightstay/concierge/internal/matcher"
	"github.com/brightstay/concierge/internal/models"
	"github.com/brightstay/concierge/internal/responder"
	"github.com/brightstay/concierge/internal/sink"
	"github.com/brightstay/concierge/internal/store"
)

// Result is the outcome of routing one guest message.
type Result struct {
	Reply         string                `json:"reply"`
	Language      string                `json:"language"`
	PrimaryThread *models.Thread        `json:"primary_thread"`
	Threads       []*models.Thread      `json:"threads"`
	ActionRecord  *models.ActionRecord  `json:"action_record,omitempty"`
	// Degraded is set when the flow handler failed and Reply is the
	// generic fallback; the primary thread stays open for retry.
	Degraded bool `json:"degraded,omitempty"`
}

type Dispatcher struct {
	store      store.ThreadStore
	matcher    *matcher.Matcher
	classifier classifier.Classifier
	responder  responder.Responder
	sink       sink.Sink
	logger     *zap.Logger

	// Serializes messages of one session; different sessions do not
	// contend with each other.
	sessionLocks sync.Map // session code -> *sync.Mutex
}

func New(threads store.ThreadStore, m *matcher.Matcher, clf classifier.Classifier, rsp responder.Responder, recordSink sink.Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:      threads,
		matcher:    m,
		classifier: clf,
		responder:  rsp,
		sink:       recordSink,
		logger:     logger,
	}
}

// HandleMessage routes one guest message end to end.
//
// Answer-only threads (faq, general) resolve immediately after a
// successful reply, so a related follow-up starts a fresh thread rather
// than continuing the old one. Note-producing threads move to
// awaiting_confirmation only once a staff action was actually recorded.
func (d *Dispatcher) HandleMessage(ctx context.Context, sessionCode, message, language string) (*Result, error) {
	v, _ := d.sessionLocks.LoadOrStore(sessionCode, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	classification := d.classify(ctx, sessionCode, message, language)

	threads, err := d.routeIntents(ctx, sessionCode, message, classification.Intents)
	if err != nil {
		return nil, err
	}

	primaryIdx := primaryIntent(classification.Intents)
	primary := threads[primaryIdx]

	result := &Result{
		Language:      classification.Language,
		PrimaryThread: primary,
		Threads:       threads,
	}

	flow, err := d.responder.Respond(ctx, primary, message)
	if err != nil {
		// Thread status is untouched so the next turn can retry.
		d.logger.Error("flow handler failed, returning fallback reply",
			zap.Error(err),
			zap.String("session_code", sessionCode),
			zap.Int64("thread_id", primary.ID))
		result.Reply = responder.FallbackReply(classification.Language)
		result.Degraded = true
		return result, nil
	}

	d.foldReply(ctx, primary, flow)
	result.Reply = flow.Reply
	result.ActionRecord = flow.ActionRecord
	result.PrimaryThread = d.refresh(ctx, primary)
	return result, nil
}

// classify runs the external classifier, substituting a single general
// intent at full confidence when it fails or returns nothing usable.
func (d *Dispatcher) classify(ctx context.Context, sessionCode, message, language string) *models.Classification {
	history := d.recentHistory(ctx, sessionCode)
	classification, err := d.classifier.Classify(ctx, message, language, history)
	if err != nil {
		d.logger.Warn("classifier unavailable, falling back to general intent",
			zap.Error(err),
			zap.String("session_code", sessionCode))
		return classifier.GeneralFallback(language)
	}
	if len(classification.Intents) == 0 {
		d.logger.Warn("classifier returned no intents, falling back to general intent",
			zap.String("session_code", sessionCode))
		fallback := classifier.GeneralFallback(language)
		fallback.Language = classification.Language
		fallback.Sentiment = classification.Sentiment
		return fallback
	}
	return classification
}

// routeIntents matches or creates a thread for every intent, in
// classification order. The returned slice is index-aligned with intents.
func (d *Dispatcher) routeIntents(ctx context.Context, sessionCode, message string, intents []models.Intent) ([]*models.Thread, error) {
	threads := make([]*models.Thread, 0, len(intents))
	for _, intent := range intents {
		matched, err := d.matcher.MatchForIntent(ctx, sessionCode, message, intent)
		if err != nil {
			return nil, err
		}

		seed := seedContext(matcher.CategoryFor(intent.Type), message, intent.Details)
		var thread *models.Thread
		if matched != nil {
			if err := d.store.AddMessage(ctx, matched.ID, message, models.RoleUser); err != nil {
				return nil, err
			}
			if err := d.store.MergeContext(ctx, matched.ID, seed); err != nil {
				return nil, err
			}
			thread = d.refresh(ctx, matched)
		} else {
			thread, err = d.store.CreateThread(ctx, sessionCode, matcher.CategoryFor(intent.Type), seed, message)
			if err != nil {
				return nil, err
			}
			d.logger.Info("spawned thread",
				zap.String("session_code", sessionCode),
				zap.Int64("thread_id", thread.ID),
				zap.String("category", string(thread.Category)))
		}
		d.recordTranscript(ctx, thread, message, models.RoleUser)
		threads = append(threads, thread)
	}
	return threads, nil
}

// foldReply appends the assistant turn and advances the primary thread's
// status: action recorded -> awaiting_confirmation, answer-only ->
// resolved, note-producing without an action -> stays open.
func (d *Dispatcher) foldReply(ctx context.Context, primary *models.Thread, flow *responder.Result) {
	if err := d.store.AddMessage(ctx, primary.ID, flow.Reply, models.RoleAssistant); err != nil {
		d.logger.Error("failed to append reply", zap.Error(err), zap.Int64("thread_id", primary.ID))
	}
	d.recordTranscript(ctx, d.refresh(ctx, primary), flow.Reply, models.RoleAssistant)

	switch {
	case flow.ActionRecord != nil:
		d.setStatus(ctx, primary.ID, models.StatusAwaitingConfirmation)
	case !primary.Category.NoteProducing():
		if primary.Category == models.CategoryGeneral {
			merge := models.ThreadContext{General: &models.GeneralContext{LastResponse: flow.Reply}}
			if err := d.store.MergeContext(ctx, primary.ID, merge); err != nil {
				d.logger.Error("failed to merge reply context", zap.Error(err), zap.Int64("thread_id", primary.ID))
			}
		}
		d.setStatus(ctx, primary.ID, models.StatusResolved)
	}
}

// SetThreadStatus exposes explicit transitions to the outer system:
// cancelling a non-terminal thread, or confirming an
// awaiting_confirmation one as resolved.
func (d *Dispatcher) SetThreadStatus(ctx context.Context, threadID int64, status models.ThreadStatus) error {
	return d.store.SetStatus(ctx, threadID, status)
}

func (d *Dispatcher) setStatus(ctx context.Context, threadID int64, status models.ThreadStatus) {
	if err := d.store.SetStatus(ctx, threadID, status); err != nil {
		d.logger.Error("failed to set thread status",
			zap.Error(err),
			zap.Int64("thread_id", threadID),
			zap.String("status", string(status)))
	}
}

// historyLimit caps how many recent turns are handed to the classifier.
const historyLimit = 10

func (d *Dispatcher) recentHistory(ctx context.Context, sessionCode string) []models.Message {
	threads, err := d.store.ListBySession(ctx, sessionCode)
	if err != nil {
		d.logger.Warn("failed to load history", zap.Error(err), zap.String("session_code", sessionCode))
		return nil
	}
	var all []models.Message
	for _, t := range threads {
		all = append(all, t.Messages...)
	}
	if len(all) > historyLimit {
		all = all[len(all)-historyLimit:]
	}
	return all
}

func (d *Dispatcher) refresh(ctx context.Context, thread *models.Thread) *models.Thread {
	threads, err := d.store.ListBySession(ctx, thread.SessionCode)
	if err == nil {
		for _, t := range threads {
			if t.ID == thread.ID {
				return t
			}
		}
	}
	return thread
}

func (d *Dispatcher) recordTranscript(ctx context.Context, thread *models.Thread, content string, role models.MessageRole) {
	entry := models.TranscriptEntry{
		SessionCode: thread.SessionCode,
		ThreadID:    thread.ID,
		Role:        role,
		Content:     content,
		CreatedAt:   time.Now(),
	}
	if len(thread.Messages) > 0 {
		entry.MessageID = thread.Messages[len(thread.Messages)-1].ID
	}
	if err := d.sink.RecordTranscript(ctx, entry); err != nil {
		d.logger.Error("failed to persist transcript entry",
			zap.Error(err),
			zap.Int64("thread_id", thread.ID))
	}
}

// primaryIntent picks the index of the highest-confidence intent; list
// position breaks ties.
func primaryIntent(intents []models.Intent) int {
	best := 0
	for i, intent := range intents {
		if intent.Confidence > intents[best].Confidence {
			best = i
		}
	}
	return best
}

// seedContext builds the category-appropriate context slice for a new or
// matched thread from the intent details.
func seedContext(category models.ThreadCategory, message string, details models.IntentDetails) models.ThreadContext {
	seed := models.ThreadContext{Keywords: keywords.Extract(message, details)}
	switch category {
	case models.CategoryRequest, models.CategoryUpsell:
		seed.Request = &models.RequestContext{
			ItemName:         details.ItemName,
			Quantity:         details.Quantity,
			TimingPreference: details.TimingPreference,
		}
	case models.CategoryComplaint:
		seed.Complaint = &models.ComplaintContext{Summary: details.ComplaintSummary}
	case models.CategoryFaq:
		query := details.FaqQuery
		if query == "" {
			query = message
		}
		seed.Faq = &models.FaqContext{Query: query, Keywords: details.FaqKeywords}
	case models.CategoryGeneral:
		seed.General = &models.GeneralContext{}
	}
	return seed
}
