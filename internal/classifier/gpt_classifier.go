package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/models"
)

type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTClassifier(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

const classifyPrompt = `You are the intent classifier for a hotel guest messaging system.
Analyze the guest message and return every independent intent it carries.

Known intent types: request_item, request_service, room_service, housekeeping,
maintenance, transportation, complaint, feedback_negative, faq, policy_question,
information_request, upsell, upgrade_request, premium_service, greeting,
small_talk, general.

Return a JSON object with this structure and nothing else:
{
    "language": "ISO 639-1 code",
    "sentiment": "positive|neutral|negative",
    "intents": [
        {
            "type": "intent_type",
            "confidence": 0.0,
            "details": {
                "item_name": "normalized item, for request/upsell",
                "item_phrase": "guest's literal wording, for request/upsell",
                "quantity": 0,
                "timing_preference": "e.g. right away, tomorrow morning",
                "complaint_summary": "one sentence, for complaints",
                "complaint_keywords": ["..."],
                "faq_query": "the question asked, for faq",
                "faq_keywords": ["..."]
            }
        }
    ]
}

Omit detail fields that do not apply to the intent type.%s

Guest message: %s`

func (c *GPTClassifier) Classify(ctx context.Context, message, language string, history []models.Message) (*models.Classification, error) {
	var historyBlock string
	if len(history) > 0 {
		var b strings.Builder
		b.WriteString("\n\nRecent conversation for context:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		historyBlock = b.String()
	}

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(classifyPrompt, historyBlock, message),
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		c.logger.Error("failed to get classification response", zap.Error(err))
		return nil, fmt.Errorf("classify request: %w", err)
	}

	var classification models.Classification
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &classification); err != nil {
		c.logger.Error("failed to parse classification response",
			zap.Error(err),
			zap.String("response", raw))
		return nil, fmt.Errorf("parse classification: %w", err)
	}

	if classification.Language == "" {
		classification.Language = language
	}
	return &classification, nil
}
