package models

import "time"

type ThreadCategory string

const (
	CategoryRequest   ThreadCategory = "request"
	CategoryComplaint ThreadCategory = "complaint"
	CategoryFaq       ThreadCategory = "faq"
	CategoryGeneral   ThreadCategory = "general"
	CategoryUpsell    ThreadCategory = "upsell"
)

// NoteProducing reports whether threads of this category may record a
// staff-facing action. The remaining categories are answer-only.
func (c ThreadCategory) NoteProducing() bool {
	switch c {
	case CategoryRequest, CategoryComplaint, CategoryUpsell:
		return true
	}
	return false
}

type ThreadStatus string

const (
	StatusOpen                 ThreadStatus = "open"
	StatusAwaitingConfirmation ThreadStatus = "awaiting_confirmation"
	StatusResolved             ThreadStatus = "resolved"
	StatusCancelled            ThreadStatus = "cancelled"
)

func (s ThreadStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn inside a thread.
type Message struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Role      MessageRole `json:"role"`
	Timestamp time.Time   `json:"timestamp"`
}

// RequestContext remembers what a request/upsell thread is about.
type RequestContext struct {
	ItemName         string `json:"item_name,omitempty"`
	Quantity         int    `json:"quantity,omitempty"`
	TimingPreference string `json:"timing_preference,omitempty"`
}

type ComplaintContext struct {
	Summary string `json:"summary,omitempty"`
}

type FaqContext struct {
	Query    string   `json:"query,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type GeneralContext struct {
	LastResponse string `json:"last_response,omitempty"`
}

// ThreadContext is the category-tagged context union. Exactly the slice
// matching the thread's Category is populated; Keywords is always present
// and drives matching.
type ThreadContext struct {
	Keywords  []string          `json:"keywords"`
	Request   *RequestContext   `json:"request,omitempty"`
	Complaint *ComplaintContext `json:"complaint,omitempty"`
	Faq       *FaqContext       `json:"faq,omitempty"`
	General   *GeneralContext   `json:"general,omitempty"`
}

// Thread is one sub-conversation within a guest session, scoped to a
// single topic. A session may hold several active threads at once.
type Thread struct {
	ID              int64          `json:"id"`
	SessionCode     string         `json:"session_code"`
	Category        ThreadCategory `json:"category"`
	Status          ThreadStatus   `json:"status"`
	Active          bool           `json:"is_active"`
	Context         ThreadContext  `json:"context"`
	Messages        []Message      `json:"messages"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	LastUserMessage string         `json:"last_user_message"` // lowercased
}

// Clone returns a deep copy so callers can hold a snapshot without
// aliasing store-owned state.
func (t *Thread) Clone() *Thread {
	c := *t
	c.Messages = make([]Message, len(t.Messages))
	copy(c.Messages, t.Messages)
	c.Context.Keywords = append([]string(nil), t.Context.Keywords...)
	if t.Context.Request != nil {
		r := *t.Context.Request
		c.Context.Request = &r
	}
	if t.Context.Complaint != nil {
		cc := *t.Context.Complaint
		c.Context.Complaint = &cc
	}
	if t.Context.Faq != nil {
		f := *t.Context.Faq
		f.Keywords = append([]string(nil), t.Context.Faq.Keywords...)
		c.Context.Faq = &f
	}
	if t.Context.General != nil {
		g := *t.Context.General
		c.Context.General = &g
	}
	return &c
}
