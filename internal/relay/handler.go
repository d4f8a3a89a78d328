package relay

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/andresuchdata/timesheet-relay/internal/history"
	"github.com/andresuchdata/timesheet-relay/pkg/logger"
	"github.com/gorilla/mux"
)

// Recorder receives the outcome of every invocation.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Handler serves one relay invocation per request. Method, headers and body
// of the inbound request are ignored.
type Handler struct {
	relay    *Relay
	recorder Recorder
}

// NewHandler wraps r. recorder may be nil.
func NewHandler(r *Relay, recorder Recorder) *Handler {
	return &Handler{
		relay:    r,
		recorder: recorder,
	}
}

// RegisterRoutes mounts the handler on any method at / and /relay.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Handle("/", h)
	router.Handle("/relay", h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	// Outbound calls are not tied to the inbound connection: a client that
	// hangs up does not abort an upload in flight.
	res := h.relay.Invoke(context.WithoutCancel(r.Context()))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(res.Status)
	_, _ = io.WriteString(w, res.Message)

	h.record(res, started)
}

func (h *Handler) record(res Result, started time.Time) {
	if h.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run := history.NewRun(res.Bucket, res.Key, res.Status, res.Message, started)
	if err := h.recorder.Record(ctx, run); err != nil {
		logger.Log.Warn().Err(err).Str("run", run.ID).Msg("failed to record relay run")
	}
}
