package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/models"
)

const (
	sessionKeyPrefix = "concierge:session:"
	threadIndexKey   = "concierge:thread_session" // hash: thread id -> session code
	threadIDKey      = "concierge:thread_next_id"
)

// RedisStore keeps each session's thread list as one JSON value so every
// per-session mutation is a single read-modify-write. Cross-instance
// safety relies on sticky session routing, the same single-writer
// precondition the in-memory store documents; the keyed mutex below only
// serializes writers within one process.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger

	sessionMu sync.Map // session code -> *sync.Mutex
	evictMu   sync.Mutex
}

func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

func (s *RedisStore) lockSession(code string) func() {
	v, _ := s.sessionMu.LoadOrStore(code, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func sessionKey(code string) string {
	return sessionKeyPrefix + code
}

func (s *RedisStore) loadSession(ctx context.Context, code string) ([]*models.Thread, error) {
	raw, err := s.client.Get(ctx, sessionKey(code)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", code, err)
	}
	var threads []*models.Thread
	if err := json.Unmarshal([]byte(raw), &threads); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", code, err)
	}
	return threads, nil
}

func (s *RedisStore) saveSession(ctx context.Context, code string, threads []*models.Thread) error {
	if len(threads) == 0 {
		if err := s.client.Del(ctx, sessionKey(code)).Err(); err != nil {
			return fmt.Errorf("deleting session %s: %w", code, err)
		}
		return nil
	}
	raw, err := json.Marshal(threads)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", code, err)
	}
	if err := s.client.Set(ctx, sessionKey(code), raw, 0).Err(); err != nil {
		return fmt.Errorf("saving session %s: %w", code, err)
	}
	return nil
}

func (s *RedisStore) CreateThread(ctx context.Context, sessionCode string, category models.ThreadCategory, seed models.ThreadContext, initialMessage string) (*models.Thread, error) {
	unlock := s.lockSession(sessionCode)
	defer unlock()

	id, err := s.client.Incr(ctx, threadIDKey).Result()
	if err != nil {
		return nil, fmt.Errorf("allocating thread id: %w", err)
	}

	threads, err := s.loadSession(ctx, sessionCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	t := &models.Thread{
		ID:          id,
		SessionCode: sessionCode,
		Category:    category,
		Status:      models.StatusOpen,
		Active:      true,
		Context:     seed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	appendMessage(t, initialMessage, models.RoleUser, now)
	threads = append(threads, t)

	if err := s.saveSession(ctx, sessionCode, threads); err != nil {
		return nil, err
	}
	if err := s.client.HSet(ctx, threadIndexKey, threadField(id), sessionCode).Err(); err != nil {
		return nil, fmt.Errorf("indexing thread %d: %w", id, err)
	}
	return t.Clone(), nil
}

// mutateThread runs fn against the stored thread and writes the session
// back. Unknown ids are a logged no-op, matching the memory store.
func (s *RedisStore) mutateThread(ctx context.Context, threadID int64, op string, fn func(*models.Thread) bool) error {
	code, err := s.client.HGet(ctx, threadIndexKey, threadField(threadID)).Result()
	if err == redis.Nil {
		s.logger.Warn("mutation for unknown thread, skipping",
			zap.String("op", op), zap.Int64("thread_id", threadID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolving thread %d: %w", threadID, err)
	}

	unlock := s.lockSession(code)
	defer unlock()

	threads, err := s.loadSession(ctx, code)
	if err != nil {
		return err
	}
	for _, t := range threads {
		if t.ID == threadID {
			if !fn(t) {
				return nil
			}
			return s.saveSession(ctx, code, threads)
		}
	}
	s.logger.Warn("thread missing from session, skipping",
		zap.String("op", op), zap.Int64("thread_id", threadID),
		zap.String("session_code", code))
	return nil
}

func (s *RedisStore) AddMessage(ctx context.Context, threadID int64, content string, role models.MessageRole) error {
	return s.mutateThread(ctx, threadID, "add_message", func(t *models.Thread) bool {
		appendMessage(t, content, role, time.Now())
		return true
	})
}

func (s *RedisStore) SetStatus(ctx context.Context, threadID int64, status models.ThreadStatus) error {
	return s.mutateThread(ctx, threadID, "set_status", func(t *models.Thread) bool {
		if t.Status.Terminal() {
			s.logger.Warn("status change on terminal thread, skipping",
				zap.Int64("thread_id", threadID),
				zap.String("current", string(t.Status)),
				zap.String("requested", string(status)))
			return false
		}
		applyStatus(t, status)
		return true
	})
}

func (s *RedisStore) MergeContext(ctx context.Context, threadID int64, partial models.ThreadContext) error {
	return s.mutateThread(ctx, threadID, "merge_context", func(t *models.Thread) bool {
		mergeContext(&t.Context, partial)
		t.UpdatedAt = time.Now()
		return true
	})
}

func (s *RedisStore) ListBySession(ctx context.Context, sessionCode string) ([]*models.Thread, error) {
	return s.loadSession(ctx, sessionCode)
}

func (s *RedisStore) ListActive(ctx context.Context, sessionCode string) ([]*models.Thread, error) {
	threads, err := s.loadSession(ctx, sessionCode)
	if err != nil {
		return nil, err
	}
	active := threads[:0]
	for _, t := range threads {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

func (s *RedisStore) Evict(ctx context.Context, maxAge time.Duration) (int, error) {
	if !s.evictMu.TryLock() {
		s.logger.Warn("eviction already running, skipping sweep")
		return 0, nil
	}
	defer s.evictMu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		code := strings.TrimPrefix(iter.Val(), sessionKeyPrefix)
		unlock := s.lockSession(code)

		threads, err := s.loadSession(ctx, code)
		if err != nil {
			unlock()
			return removed, err
		}
		kept := threads[:0]
		var dropped []int64
		for _, t := range threads {
			if t.UpdatedAt.Before(cutoff) && !(t.Active && !t.Status.Terminal()) {
				dropped = append(dropped, t.ID)
				removed++
				continue
			}
			kept = append(kept, t)
		}
		if len(dropped) > 0 {
			if err := s.saveSession(ctx, code, kept); err != nil {
				unlock()
				return removed, err
			}
			fields := make([]string, len(dropped))
			for i, id := range dropped {
				fields[i] = threadField(id)
			}
			if err := s.client.HDel(ctx, threadIndexKey, fields...).Err(); err != nil {
				unlock()
				return removed, fmt.Errorf("unindexing threads: %w", err)
			}
		}
		unlock()
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scanning sessions: %w", err)
	}
	if removed > 0 {
		s.logger.Info("evicted stale threads", zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func threadField(id int64) string {
	return strconv.FormatInt(id, 10)
}
