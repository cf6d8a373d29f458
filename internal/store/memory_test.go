package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/models"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(zap.NewNop())
}

func seedRequest(kws ...string) models.ThreadContext {
	return models.ThreadContext{
		Keywords: kws,
		Request:  &models.RequestContext{ItemName: "towels"},
	}
}

func TestCreateThread(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thread, err := s.CreateThread(ctx, "s1", models.CategoryRequest, seedRequest("towels"), "I need more towels")
	require.NoError(t, err)

	assert.Equal(t, models.StatusOpen, thread.Status)
	assert.True(t, thread.Active)
	assert.Equal(t, "s1", thread.SessionCode)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, models.RoleUser, thread.Messages[0].Role)
	assert.Equal(t, "i need more towels", thread.LastUserMessage)

	second, err := s.CreateThread(ctx, "s2", models.CategoryFaq, models.ThreadContext{}, "checkout time?")
	require.NoError(t, err)
	assert.Greater(t, second.ID, thread.ID, "ids follow creation order across sessions")
}

func TestAddMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thread, err := s.CreateThread(ctx, "s1", models.CategoryRequest, seedRequest(), "first")
	require.NoError(t, err)

	require.NoError(t, s.AddMessage(ctx, thread.ID, "the reply", models.RoleAssistant))
	require.NoError(t, s.AddMessage(ctx, thread.ID, "And Another", models.RoleUser))

	threads, err := s.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Messages, 3)
	assert.Equal(t, "and another", threads[0].LastUserMessage,
		"assistant turns must not touch the last user message")
}

func TestAddMessageUnknownThreadIsNoOp(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.AddMessage(context.Background(), 404, "ghost", models.RoleUser))
}

func TestSetStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thread, err := s.CreateThread(ctx, "s1", models.CategoryRequest, seedRequest(), "first")
	require.NoError(t, err)

	require.NoError(t, s.SetStatus(ctx, thread.ID, models.StatusAwaitingConfirmation))
	threads, _ := s.ListBySession(ctx, "s1")
	assert.Equal(t, models.StatusAwaitingConfirmation, threads[0].Status)
	assert.True(t, threads[0].Active, "awaiting_confirmation keeps the thread active")

	require.NoError(t, s.SetStatus(ctx, thread.ID, models.StatusResolved))
	threads, _ = s.ListBySession(ctx, "s1")
	assert.Equal(t, models.StatusResolved, threads[0].Status)
	assert.False(t, threads[0].Active, "terminal status clears the active flag")

	// Terminal states are absorbing.
	require.NoError(t, s.SetStatus(ctx, thread.ID, models.StatusOpen))
	threads, _ = s.ListBySession(ctx, "s1")
	assert.Equal(t, models.StatusResolved, threads[0].Status)

	assert.NoError(t, s.SetStatus(ctx, 404, models.StatusCancelled), "unknown id is a no-op")
}

func TestMergeContext(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thread, err := s.CreateThread(ctx, "s1", models.CategoryRequest, seedRequest("towels"), "first")
	require.NoError(t, err)

	partial := models.ThreadContext{
		Keywords: []string{"towels", "balcony"},
		Request:  &models.RequestContext{Quantity: 2, TimingPreference: "tonight"},
	}
	require.NoError(t, s.MergeContext(ctx, thread.ID, partial))

	threads, _ := s.ListBySession(ctx, "s1")
	got := threads[0].Context
	assert.Equal(t, []string{"towels", "balcony"}, got.Keywords)
	assert.Equal(t, "towels", got.Request.ItemName, "merge keeps fields the partial omits")
	assert.Equal(t, 2, got.Request.Quantity)
	assert.Equal(t, "tonight", got.Request.TimingPreference)
}

func TestListActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	open, _ := s.CreateThread(ctx, "s1", models.CategoryRequest, seedRequest(), "a")
	done, _ := s.CreateThread(ctx, "s1", models.CategoryFaq, models.ThreadContext{}, "b")
	require.NoError(t, s.SetStatus(ctx, done.ID, models.StatusResolved))

	active, err := s.ListActive(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ID)

	all, err := s.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSnapshotIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	thread, _ := s.CreateThread(ctx, "s1", models.CategoryRequest, seedRequest("towels"), "a")
	thread.Messages[0].Content = "tampered"
	thread.Context.Keywords[0] = "tampered"
	thread.Context.Request.ItemName = "tampered"

	threads, _ := s.ListBySession(ctx, "s1")
	assert.Equal(t, "a", threads[0].Messages[0].Content)
	assert.Equal(t, "towels", threads[0].Context.Keywords[0])
	assert.Equal(t, "towels", threads[0].Context.Request.ItemName)
}

func TestEvict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stale, _ := s.CreateThread(ctx, "old", models.CategoryFaq, models.ThreadContext{}, "a")
	require.NoError(t, s.SetStatus(ctx, stale.ID, models.StatusResolved))

	keptOld, _ := s.CreateThread(ctx, "sticky", models.CategoryRequest, seedRequest(), "b")

	// Backdate both so the zero-age sweep sees them as expired.
	s.mu.Lock()
	for _, id := range []int64{stale.ID, keptOld.ID} {
		s.threads[id].UpdatedAt = time.Now().Add(-2 * time.Hour)
	}
	s.mu.Unlock()

	removed, err := s.Evict(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, _ := s.ListBySession(ctx, "old")
	assert.Empty(t, gone, "session with only terminal stale threads is dropped entirely")
	s.mu.RLock()
	_, sessionExists := s.sessions["old"]
	s.mu.RUnlock()
	assert.False(t, sessionExists)

	kept, _ := s.ListBySession(ctx, "sticky")
	require.Len(t, kept, 1, "active non-terminal threads survive regardless of age")
	assert.Equal(t, keptOld.ID, kept[0].ID)
}

func TestEvictSingleFlight(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done, _ := s.CreateThread(ctx, "s1", models.CategoryFaq, models.ThreadContext{}, "a")
	require.NoError(t, s.SetStatus(ctx, done.ID, models.StatusResolved))

	s.evictMu.Lock()
	removed, err := s.Evict(ctx, 0)
	s.evictMu.Unlock()

	require.NoError(t, err)
	assert.Equal(t, 0, removed, "overlapping sweep is skipped, not queued")
}

func TestEvictKeepsFreshTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done, _ := s.CreateThread(ctx, "s1", models.CategoryFaq, models.ThreadContext{}, "a")
	require.NoError(t, s.SetStatus(ctx, done.ID, models.StatusResolved))

	removed, err := s.Evict(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "recently touched terminal threads stay within maxAge")
}
