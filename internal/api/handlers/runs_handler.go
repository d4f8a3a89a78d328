package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/andresuchdata/timesheet-relay/internal/history"
	"github.com/gin-gonic/gin"
)

// RunLister is the read side of a history.Store.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

type RunsHandler struct {
	runs RunLister
}

func NewRunsHandler(runs RunLister) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// GetRuns returns the most recent relay invocations, newest first.
func (h *RunsHandler) GetRuns(c *gin.Context) {
	limit := 20
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 {
		limit = v
	}

	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch runs", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"count": len(runs),
	})
}
