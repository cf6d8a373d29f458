package models

import "time"

// IntentDetails carries the structured payload the classifier extracted
// for one intent. Only the fields matching the intent's category are set.
type IntentDetails struct {
	ItemName          string   `json:"item_name,omitempty"`
	ItemPhrase        string   `json:"item_phrase,omitempty"` // guest's literal wording
	Quantity          int      `json:"quantity,omitempty"`
	TimingPreference  string   `json:"timing_preference,omitempty"`
	ComplaintSummary  string   `json:"complaint_summary,omitempty"`
	ComplaintKeywords []string `json:"complaint_keywords,omitempty"`
	FaqQuery          string   `json:"faq_query,omitempty"`
	FaqKeywords       []string `json:"faq_keywords,omitempty"`
}

// Intent is one classified purpose of a message. A single message may
// carry several independent intents.
type Intent struct {
	Type       string        `json:"type"`
	Confidence float64       `json:"confidence"`
	Details    IntentDetails `json:"details"`
}

// Classification is the full result of analyzing one inbound message.
type Classification struct {
	Language  string   `json:"language"`
	Sentiment string   `json:"sentiment"`
	Intents   []Intent `json:"intents"`
}

// ActionRecord is a staff-facing action item produced by the
// note-producing handling path.
type ActionRecord struct {
	ID          string         `json:"id"`
	SessionCode string         `json:"session_code"`
	ThreadID    int64          `json:"thread_id"`
	Category    ThreadCategory `json:"category"`
	Summary     string         `json:"summary"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TranscriptEntry is one persisted chat turn.
type TranscriptEntry struct {
	SessionCode string      `json:"session_code"`
	ThreadID    int64       `json:"thread_id"`
	MessageID   string      `json:"message_id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	CreatedAt   time.Time   `json:"created_at"`
}
