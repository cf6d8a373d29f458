// Package matcher decides which in-flight thread, if any, an incoming
// message continues.
package matcher

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/keywords"
	"github.com/brightstay/concierge/internal/models"
)

// scoreThreshold is the minimum total score a candidate must beat for a
// match; anything at or below it forces a new thread.
const scoreThreshold = 0.30

const (
	weightKeywordOverlap = 0.40
	weightContext        = 0.35
	weightReference      = 0.25
)

// aliasTable folds the classifier's raw intent types into thread
// categories. Unrecognized types fall back to general.
var aliasTable = map[string]models.ThreadCategory{
	"request":         models.CategoryRequest,
	"request_item":    models.CategoryRequest,
	"request_service": models.CategoryRequest,
	"room_service":    models.CategoryRequest,
	"housekeeping":    models.CategoryRequest,
	"maintenance":     models.CategoryRequest,
	"transportation":  models.CategoryRequest,

	"complaint":         models.CategoryComplaint,
	"feedback_negative": models.CategoryComplaint,

	"faq":                 models.CategoryFaq,
	"policy_question":     models.CategoryFaq,
	"information_request": models.CategoryFaq,
	"question":            models.CategoryFaq,

	"upsell":          models.CategoryUpsell,
	"upgrade_request": models.CategoryUpsell,
	"premium_service": models.CategoryUpsell,

	"general":    models.CategoryGeneral,
	"greeting":   models.CategoryGeneral,
	"small_talk": models.CategoryGeneral,
	"chitchat":   models.CategoryGeneral,
}

// CategoryFor maps a raw intent type to its thread category.
func CategoryFor(intentType string) models.ThreadCategory {
	if c, ok := aliasTable[strings.ToLower(intentType)]; ok {
		return c
	}
	return models.CategoryGeneral
}

var complaintLexicon = []string{
	"issue", "problem", "complaint", "wrong", "broken", "not working",
}

var interrogativeLexicon = []string{
	"what", "when", "where", "how", "why", "can", "is", "are",
}

var referencePhrases = []string{
	"my request", "my complaint", "the issue", "my order", "that request",
	"this problem", "my question", "earlier request", "previous request",
}

// ThreadReader is the read side of the store the matcher needs.
type ThreadReader interface {
	ListActive(ctx context.Context, sessionCode string) ([]*models.Thread, error)
}

type Matcher struct {
	store  ThreadReader
	logger *zap.Logger
}

func New(store ThreadReader, logger *zap.Logger) *Matcher {
	return &Matcher{store: store, logger: logger}
}

// MatchForIntent scores the session's active threads of the intent's
// category against the message and returns the best scoring one, or nil
// when no candidate clears the threshold. Equal scores go to the thread
// created first.
func (m *Matcher) MatchForIntent(ctx context.Context, sessionCode, message string, intent models.Intent) (*models.Thread, error) {
	candidates, err := m.store.ListActive(ctx, sessionCode)
	if err != nil {
		return nil, err
	}

	category := CategoryFor(intent.Type)
	normalized := strings.ToLower(message)
	msgKeywords := keywords.Extract(message, intent.Details)

	var best *models.Thread
	var bestScore float64
	for _, t := range candidates {
		if t.Category != category || t.Status.Terminal() {
			continue
		}
		score := m.score(t, normalized, msgKeywords)
		if score > bestScore {
			best, bestScore = t, score
		}
	}

	if best == nil || bestScore <= scoreThreshold {
		return nil, nil
	}
	m.logger.Debug("matched thread",
		zap.String("session_code", sessionCode),
		zap.Int64("thread_id", best.ID),
		zap.Float64("score", bestScore))
	return best, nil
}

func (m *Matcher) score(t *models.Thread, normalized string, msgKeywords []string) float64 {
	total := weightKeywordOverlap*keywordOverlap(msgKeywords, t.Context.Keywords) +
		weightContext*contextScore(t, normalized) +
		weightReference*referenceScore(t, normalized)
	if total > 1.0 {
		total = 1.0
	}
	return total
}

// keywordOverlap is the Jaccard similarity of the two keyword sets, zero
// when either set is empty.
func keywordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	intersection := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// contextScore rewards category-specific continuity cues in the message.
func contextScore(t *models.Thread, normalized string) float64 {
	score := 0.0
	switch t.Category {
	case models.CategoryRequest, models.CategoryUpsell:
		if t.Context.Request == nil || t.Context.Request.ItemName == "" {
			break
		}
		item := strings.ToLower(t.Context.Request.ItemName)
		if strings.Contains(normalized, item) {
			score += 0.6
		}
		words := strings.Fields(item)
		if len(words) > 0 {
			found := 0
			for _, w := range words {
				if containsTerm(normalized, w) {
					found++
				}
			}
			score += 0.3 * float64(found) / float64(len(words))
		}
	case models.CategoryComplaint:
		if containsAny(normalized, complaintLexicon) {
			score += 0.4
		}
	case models.CategoryFaq:
		if containsAny(normalized, interrogativeLexicon) {
			score += 0.3
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// referenceScore rewards explicit back-references to an earlier thread.
func referenceScore(t *models.Thread, normalized string) float64 {
	score := 0.0
	if containsAny(normalized, referencePhrases) {
		score += 0.7
	}
	if t.Context.Request != nil && t.Context.Request.TimingPreference != "" {
		if strings.Contains(normalized, strings.ToLower(t.Context.Request.TimingPreference)) {
			score += 0.3
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func containsAny(normalized string, terms []string) bool {
	for _, term := range terms {
		if containsTerm(normalized, term) {
			return true
		}
	}
	return false
}

// containsTerm matches multi-word terms as substrings and single words as
// whole tokens, so "is" does not fire on "this".
func containsTerm(normalized, term string) bool {
	if strings.ContainsRune(term, ' ') {
		return strings.Contains(normalized, term)
	}
	for _, raw := range strings.Fields(normalized) {
		if strings.Trim(raw, ".,!?;:\"'()") == term {
			return true
		}
	}
	return false
}
