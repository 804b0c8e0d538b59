package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/feedguard/internal/detector"
	"github.com/jonesrussell/feedguard/internal/domain"
	"github.com/jonesrussell/feedguard/internal/flagstore"
	"github.com/jonesrussell/feedguard/internal/logger"
)

const defaultFlaggedLimit = 100

// QueueStats reports outbox depths.
type QueueStats interface {
	Len() int
}

// Handler serves the agent's local HTTP API used by the extraction and
// UI collaborators.
type Handler struct {
	tracker *detector.Tracker
	flags   *flagstore.Store
	reports QueueStats
	reviews QueueStats
	log     logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	tracker *detector.Tracker,
	flags *flagstore.Store,
	reports, reviews QueueStats,
	log logger.Logger,
) *Handler {
	return &Handler{
		tracker: tracker,
		flags:   flags,
		reports: reports,
		reviews: reviews,
		log:     log,
	}
}

type scanRequest struct {
	Posts []domain.ScanPost `json:"posts" binding:"required"`
}

// Scan ingests a batch of extracted posts and runs detection on them.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan payload"})
		return
	}

	h.tracker.Scan(c.Request.Context(), req.Posts)
	c.JSON(http.StatusOK, gin.H{
		"status":   "processed",
		"received": len(req.Posts),
	})
}

// ReportSafe handles the "report safe" user action on a flagged post.
func (h *Handler) ReportSafe(c *gin.Context) {
	h.userAction(c, h.tracker.ReportSafe)
}

// ReportMalicious handles the "mark malicious" user action.
func (h *Handler) ReportMalicious(c *gin.Context) {
	h.userAction(c, h.tracker.ReportMalicious)
}

// ConfirmSafe handles the explicit "confirm safe" user action on a
// clean post.
func (h *Handler) ConfirmSafe(c *gin.Context) {
	h.userAction(c, h.tracker.ConfirmSafe)
}

// Recheck re-runs classification on a user-cleared post.
func (h *Handler) Recheck(c *gin.Context) {
	h.userAction(c, h.tracker.Recheck)
}

func (h *Handler) userAction(c *gin.Context, action func(ctx context.Context, postID string) error) {
	postID := c.Param("id")

	err := action(c.Request.Context(), postID)
	switch {
	case errors.Is(err, detector.ErrUnknownPost):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown post"})
	case errors.Is(err, detector.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		h.log.Error("User action failed",
			logger.String("post_id", postID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// GetPost returns a post snapshot with its desired render state.
func (h *Handler) GetPost(c *gin.Context) {
	postID := c.Param("id")

	post, ok := h.tracker.Snapshot(postID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown post"})
		return
	}
	blurred, _ := h.tracker.Blurred(postID)

	c.JSON(http.StatusOK, gin.H{
		"post":    post,
		"blurred": blurred,
	})
}

type clickRequest struct {
	Domain string `json:"domain" binding:"required"`
	PostID string `json:"post_id"`
}

// Click records a link click into the interaction graph.
func (h *Handler) Click(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid click payload"})
		return
	}

	h.tracker.RecordClick(c.Request.Context(), req.Domain, req.PostID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Flagged enumerates recently flagged links for display.
func (h *Handler) Flagged(c *gin.Context) {
	limit := defaultFlaggedLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	links, err := h.flags.List(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list flagged links", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links})
}

// Queues reports the current outbox depths.
func (h *Handler) Queues(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"report_queue": h.reports.Len(),
		"review_queue": h.reviews.Len(),
	})
}
