package sink

import (
	"context"
	"sync"

	"github.com/brightstay/concierge/internal/models"
)

// MemorySink keeps records in process, for development and tests.
type MemorySink struct {
	mu          sync.Mutex
	transcripts []models.TranscriptEntry
	actions     []models.ActionRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) RecordTranscript(ctx context.Context, entry models.TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, entry)
	return nil
}

func (s *MemorySink) RecordAction(ctx context.Context, record models.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, record)
	return nil
}

func (s *MemorySink) Actions() []models.ActionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActionRecord(nil), s.actions...)
}

func (s *MemorySink) Transcripts() []models.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TranscriptEntry(nil), s.transcripts...)
}

func (s *MemorySink) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
