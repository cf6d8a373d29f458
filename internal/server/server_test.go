package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/classifier"
	"github.com/brightstay/concierge/internal/dispatcher"
	"github.com/brightstay/concierge/internal/matcher"
	"github.com/brightstay/concierge/internal/models"
	"github.com/brightstay/concierge/internal/responder"
	"github.com/brightstay/concierge/internal/sink"
	"github.com/brightstay/concierge/internal/store"
)

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, message, language string, history []models.Message) (*models.Classification, error) {
	return &models.Classification{
		Language: "en",
		Intents: []models.Intent{
			{Type: "faq", Confidence: 0.9, Details: models.IntentDetails{FaqQuery: message}},
		},
	}, nil
}

type stubResponder struct{}

func (stubResponder) Respond(ctx context.Context, thread *models.Thread, message string) (*responder.Result, error) {
	return &responder.Result{Reply: "Checkout is at 11am."}, nil
}

var _ classifier.Classifier = stubClassifier{}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, store.ThreadStore) {
	t.Helper()
	logger := zap.NewNop()
	threads := store.NewMemoryStore(logger)
	d := dispatcher.New(threads, matcher.New(threads, logger), stubClassifier{}, stubResponder{}, sink.NewMemorySink(), logger)
	return New(d, threads, logger), threads
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestPostMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	w := postJSON(t, srv.Handler(), "/v1/sessions/s1/messages", map[string]string{
		"message": "what time is checkout",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result dispatcher.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Checkout is at 11am.", result.Reply)
	require.NotNil(t, result.PrimaryThread)
	assert.Equal(t, models.CategoryFaq, result.PrimaryThread.Category)
}

func TestPostMessageRequiresBody(t *testing.T) {
	srv, _ := newTestServer(t)
	w := postJSON(t, srv.Handler(), "/v1/sessions/s1/messages", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListThreads(t *testing.T) {
	srv, threads := newTestServer(t)
	ctx := context.Background()

	open, err := threads.CreateThread(ctx, "s1", models.CategoryRequest, models.ThreadContext{Keywords: []string{"towels"}}, "towels please")
	require.NoError(t, err)
	done, err := threads.CreateThread(ctx, "s1", models.CategoryFaq, models.ThreadContext{}, "checkout?")
	require.NoError(t, err)
	require.NoError(t, threads.SetStatus(ctx, done.ID, models.StatusResolved))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/threads", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var all struct {
		Threads []*models.Thread `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all.Threads, 2)

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/threads?active=true", nil)
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var active struct {
		Threads []*models.Thread `json:"threads"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &active))
	require.Len(t, active.Threads, 1)
	assert.Equal(t, open.ID, active.Threads[0].ID)
}

func TestSetThreadStatus(t *testing.T) {
	srv, threads := newTestServer(t)
	ctx := context.Background()

	thread, err := threads.CreateThread(ctx, "s1", models.CategoryRequest, models.ThreadContext{}, "towels please")
	require.NoError(t, err)

	w := postJSON(t, srv.Handler(), fmt.Sprintf("/v1/threads/%d/status", thread.ID), map[string]string{
		"status": "cancelled",
	})
	require.Equal(t, http.StatusOK, w.Code)

	all, err := threads.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, all[0].Status)
	assert.False(t, all[0].Active)
}

func TestSetThreadStatusRejectsInternalStates(t *testing.T) {
	srv, _ := newTestServer(t)
	w := postJSON(t, srv.Handler(), "/v1/threads/1/status", map[string]string{
		"status": "awaiting_confirmation",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvictEndpoint(t *testing.T) {
	srv, threads := newTestServer(t)
	ctx := context.Background()

	done, err := threads.CreateThread(ctx, "s1", models.CategoryFaq, models.ThreadContext{}, "checkout?")
	require.NoError(t, err)
	require.NoError(t, threads.SetStatus(ctx, done.ID, models.StatusResolved))

	w := postJSON(t, srv.Handler(), "/v1/admin/evict", map[string]int{"max_age_hours": 0})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Removed int `json:"removed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Removed)

	remaining, err := threads.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
