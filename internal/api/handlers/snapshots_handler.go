package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/andresuchdata/timesheet-relay/internal/storage"
	"github.com/gin-gonic/gin"
)

// ObjectLister is the listing side of storage.ObjectStorage.
type ObjectLister interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error)
}

type SnapshotsHandler struct {
	objects ObjectLister
	bucket  string
	prefix  string
}

func NewSnapshotsHandler(objects ObjectLister, bucket, prefix string) *SnapshotsHandler {
	return &SnapshotsHandler{objects: objects, bucket: bucket, prefix: prefix}
}

// GetSnapshots lists stored timesheet snapshots, newest key first.
func (h *SnapshotsHandler) GetSnapshots(c *gin.Context) {
	if h.bucket == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bucket is not configured"})
		return
	}

	objects, err := h.objects.ListObjects(c.Request.Context(), h.bucket, h.prefix)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list snapshots", "details": err.Error()})
		return
	}

	// Keys embed a sortable timestamp.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key > objects[j].Key })

	c.JSON(http.StatusOK, gin.H{
		"bucket":    h.bucket,
		"snapshots": objects,
	})
}
