// Package server exposes the router over HTTP for the guest chat widget
// and the staff/scheduler surfaces.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/brightstay/concierge/internal/dispatcher"
	"github.com/brightstay/concierge/internal/models"
	"github.com/brightstay/concierge/internal/store"
)

type Server struct {
	dispatcher *dispatcher.Dispatcher
	store      store.ThreadStore
	logger     *zap.Logger
	engine     *gin.Engine
}

func New(d *dispatcher.Dispatcher, threads store.ThreadStore, logger *zap.Logger) *Server {
	s := &Server{
		dispatcher: d,
		store:      threads,
		logger:     logger,
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	v1.POST("/sessions/:code/messages", s.postMessage)
	v1.GET("/sessions/:code/threads", s.listThreads)
	v1.POST("/threads/:id/status", s.setThreadStatus)
	v1.POST("/admin/evict", s.evict)

	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

type messageRequest struct {
	Message  string `json:"message" binding:"required"`
	Language string `json:"language"`
}

func (s *Server) postMessage(c *gin.Context) {
	code := c.Param("code")

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	result, err := s.dispatcher.HandleMessage(c.Request.Context(), code, req.Message, req.Language)
	if err != nil {
		s.logger.Error("failed to handle message",
			zap.Error(err),
			zap.String("session_code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to handle message"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listThreads(c *gin.Context) {
	code := c.Param("code")

	var (
		threads []*models.Thread
		err     error
	)
	if c.Query("active") == "true" {
		threads, err = s.store.ListActive(c.Request.Context(), code)
	} else {
		threads, err = s.store.ListBySession(c.Request.Context(), code)
	}
	if err != nil {
		s.logger.Error("failed to list threads",
			zap.Error(err),
			zap.String("session_code", code))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list threads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

type statusRequest struct {
	Status models.ThreadStatus `json:"status" binding:"required"`
}

func (s *Server) setThreadStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// The outer system may cancel a thread or confirm it as resolved;
	// the remaining statuses are owned by the dispatch flow.
	if req.Status != models.StatusCancelled && req.Status != models.StatusResolved {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be cancelled or resolved"})
		return
	}

	if err := s.dispatcher.SetThreadStatus(c.Request.Context(), id, req.Status); err != nil {
		s.logger.Error("failed to set thread status",
			zap.Error(err),
			zap.Int64("thread_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set thread status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"thread_id": id, "status": req.Status})
}

type evictRequest struct {
	MaxAgeHours int `json:"max_age_hours"`
}

// evict is the hook for the external scheduler; the router never sweeps
// on its own.
func (s *Server) evict(c *gin.Context) {
	var req evictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MaxAgeHours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_age_hours must not be negative"})
		return
	}

	removed, err := s.store.Evict(c.Request.Context(), time.Duration(req.MaxAgeHours)*time.Hour)
	if err != nil {
		s.logger.Error("eviction sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "eviction sweep failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
