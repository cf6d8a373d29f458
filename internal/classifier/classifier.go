// Package classifier analyzes guest messages into language, sentiment and
// one or more intents with structured details.
package classifier

import (
	"context"

	"github.com/brightstay/concierge/internal/models"
)

type Classifier interface {
	// Classify analyzes one message. history carries the most recent
	// turns of the session for disambiguation and may be nil. Callers
	// own the fallback when classification fails.
	Classify(ctx context.Context, message, language string, history []models.Message) (*models.Classification, error)
}

// GeneralFallback is the classification substituted when the classifier
// is unavailable or returns nothing usable: a single general intent at
// full confidence, so the message still reaches a thread.
func GeneralFallback(language string) *models.Classification {
	return &models.Classification{
		Language:  language,
		Sentiment: "neutral",
		Intents: []models.Intent{
			{Type: string(models.CategoryGeneral), Confidence: 1.0},
		},
	}
}
