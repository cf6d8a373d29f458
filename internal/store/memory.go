package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/models"
)

// MemoryStore is the single-instance ThreadStore implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	threads  map[int64]*models.Thread
	sessions map[string][]int64 // creation order per session

	evictMu sync.Mutex
	logger  *zap.Logger
}

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		threads:  make(map[int64]*models.Thread),
		sessions: make(map[string][]int64),
		logger:   logger,
	}
}

func (s *MemoryStore) CreateThread(ctx context.Context, sessionCode string, category models.ThreadCategory, seed models.ThreadContext, initialMessage string) (*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	t := &models.Thread{
		ID:          s.nextID,
		SessionCode: sessionCode,
		Category:    category,
		Status:      models.StatusOpen,
		Active:      true,
		Context:     seed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	appendMessage(t, initialMessage, models.RoleUser, now)

	s.threads[t.ID] = t
	s.sessions[sessionCode] = append(s.sessions[sessionCode], t.ID)

	return t.Clone(), nil
}

func (s *MemoryStore) AddMessage(ctx context.Context, threadID int64, content string, role models.MessageRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		s.logger.Warn("add message to unknown thread, skipping",
			zap.Int64("thread_id", threadID))
		return nil
	}
	appendMessage(t, content, role, time.Now())
	return nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, threadID int64, status models.ThreadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		s.logger.Warn("status change for unknown thread, skipping",
			zap.Int64("thread_id", threadID),
			zap.String("status", string(status)))
		return nil
	}
	if t.Status.Terminal() {
		s.logger.Warn("status change on terminal thread, skipping",
			zap.Int64("thread_id", threadID),
			zap.String("current", string(t.Status)),
			zap.String("requested", string(status)))
		return nil
	}
	applyStatus(t, status)
	return nil
}

func (s *MemoryStore) MergeContext(ctx context.Context, threadID int64, partial models.ThreadContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[threadID]
	if !ok {
		s.logger.Warn("context merge for unknown thread, skipping",
			zap.Int64("thread_id", threadID))
		return nil
	}
	mergeContext(&t.Context, partial)
	t.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListBySession(ctx context.Context, sessionCode string) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sessions[sessionCode]
	out := make([]*models.Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.threads[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) ListActive(ctx context.Context, sessionCode string) ([]*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sessions[sessionCode]
	out := make([]*models.Thread, 0, len(ids))
	for _, id := range ids {
		if t := s.threads[id]; t.Active {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Evict(ctx context.Context, maxAge time.Duration) (int, error) {
	if !s.evictMu.TryLock() {
		s.logger.Warn("eviction already running, skipping sweep")
		return 0, nil
	}
	defer s.evictMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for code, ids := range s.sessions {
		kept := ids[:0]
		for _, id := range ids {
			t := s.threads[id]
			if t.UpdatedAt.Before(cutoff) && !(t.Active && !t.Status.Terminal()) {
				delete(s.threads, id)
				removed++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			delete(s.sessions, code)
			continue
		}
		s.sessions[code] = kept
	}
	if removed > 0 {
		s.logger.Info("evicted stale threads", zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func appendMessage(t *models.Thread, content string, role models.MessageRole, now time.Time) {
	t.Messages = append(t.Messages, models.Message{
		ID:        uuid.New().String(),
		Content:   content,
		Role:      role,
		Timestamp: now,
	})
	t.UpdatedAt = now
	if role == models.RoleUser {
		t.LastUserMessage = strings.ToLower(content)
	}
}

func applyStatus(t *models.Thread, status models.ThreadStatus) {
	t.Status = status
	t.Active = !status.Terminal()
	t.UpdatedAt = time.Now()
}
