// Package httpapi exposes the ingestion triggers over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"IncidentRadar/internal/domain"
	"IncidentRadar/internal/ports"
	"IncidentRadar/internal/usecase"
)

// Ingestor is the slice of the pipeline the HTTP surface drives.
type Ingestor interface {
	Run(ctx context.Context, opts usecase.RunOptions) (domain.RunResult, error)
	PromoteEvent(ctx context.Context, eventID int64) (usecase.PromoteResult, error)
	GetDraft(ctx context.Context, eventID int64) (domain.DraftPost, error)
}

type runRequest struct {
	Sources   []string `json:"sources"`
	MaxEvents int      `json:"maxEvents"`
}

// NewRouter wires the public health probe and the token-guarded admin API.
func NewRouter(ingestor Ingestor, adminToken string, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	admin := r.Group("/admin")
	admin.Use(AdminTokenMiddleware(adminToken))

	admin.POST("/ingest/run", func(c *gin.Context) {
		var req runRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
				return
			}
		}
		if req.MaxEvents < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "maxEvents must be positive"})
			return
		}

		sources, err := domain.ParseSources(req.Sources)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := ingestor.Run(c.Request.Context(), usecase.RunOptions{Sources: sources, MaxEvents: req.MaxEvents})
		if err != nil {
			logger.Error("manual run failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "run failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	admin.GET("/events/:id/draft", func(c *gin.Context) {
		id, ok := eventID(c)
		if !ok {
			return
		}

		draft, err := ingestor.GetDraft(c.Request.Context(), id)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
			return
		case err != nil:
			logger.Error("get draft failed", "event_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "get draft failed"})
			return
		}
		c.JSON(http.StatusOK, draft)
	})

	admin.POST("/events/:id/draft", func(c *gin.Context) {
		id, ok := eventID(c)
		if !ok {
			return
		}

		res, err := ingestor.PromoteEvent(c.Request.Context(), id)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		case err != nil:
			logger.Error("promote failed", "event_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "promote failed"})
			return
		}

		// 201 for a new draft, 200 when the event already had one.
		status := http.StatusCreated
		if !res.Inserted {
			status = http.StatusOK
		}
		c.JSON(status, res)
	})

	return r
}

// eventID reads the :id path parameter, answering 400 when it is not a positive integer.
func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id must be a positive integer"})
		return 0, false
	}
	return id, true
}
