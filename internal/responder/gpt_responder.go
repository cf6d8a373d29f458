package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/models"
	"github.com/brightstay/concierge/internal/sink"
)

type GPTResponder struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	sink        sink.Sink
	logger      *zap.Logger
}

func NewGPTResponder(apiKey string, model string, maxTokens int, temperature float64, recordSink sink.Sink, logger *zap.Logger) *GPTResponder {
	return &GPTResponder{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		sink:        recordSink,
		logger:      logger,
	}
}

type gptReply struct {
	Reply         string `json:"reply"`
	ActionSummary string `json:"action_summary"`
}

const respondPrompt = `You are the concierge assistant of a hotel, replying to a guest.

Conversation thread category: %s
Thread context: %s
Conversation so far:
%s

Reply warmly and concisely in the guest's language. If the thread category is
request, complaint or upsell and the message calls for hotel staff to act,
also produce a one-sentence action summary for the staff board; otherwise
leave it empty.

Return a JSON object with this structure and nothing else:
{
    "reply": "message to the guest",
    "action_summary": "one sentence for staff, or empty"
}

Guest message: %s`

func (r *GPTResponder) Respond(ctx context.Context, thread *models.Thread, message string) (*Result, error) {
	contextJSON, err := json.Marshal(thread.Context)
	if err != nil {
		return nil, fmt.Errorf("encode thread context: %w", err)
	}

	var history strings.Builder
	for _, m := range thread.Messages {
		fmt.Fprintf(&history, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := r.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(respondPrompt,
						thread.Category, contextJSON, history.String(), message),
				},
			},
			MaxTokens:   r.maxTokens,
			Temperature: float32(r.temperature),
		},
	)
	if err != nil {
		r.logger.Error("failed to get responder response", zap.Error(err))
		return nil, fmt.Errorf("respond request: %w", err)
	}

	var parsed gptReply
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		r.logger.Error("failed to parse responder response",
			zap.Error(err),
			zap.String("response", raw))
		return nil, fmt.Errorf("parse reply: %w", err)
	}

	result := &Result{Reply: parsed.Reply}
	if thread.Category.NoteProducing() && parsed.ActionSummary != "" {
		record := models.ActionRecord{
			ID:          uuid.New().String(),
			SessionCode: thread.SessionCode,
			ThreadID:    thread.ID,
			Category:    thread.Category,
			Summary:     parsed.ActionSummary,
			CreatedAt:   time.Now(),
		}
		if err := r.sink.RecordAction(ctx, record); err != nil {
			// The guest still gets the reply; staff-side persistence is
			// retried by a later turn, not by failing this one.
			r.logger.Error("failed to persist action record",
				zap.Error(err),
				zap.Int64("thread_id", thread.ID))
		} else {
			result.ActionRecord = &record
		}
	}
	return result, nil
}
