package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

const emitTimeout = 5 * time.Second

// Emitter posts state-change events to a webhook, best effort. Delivery
// failures are logged and never surfaced to the operation that emitted them.
type Emitter struct {
	URL        string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewEmitter returns an Emitter. An empty URL makes Emit a no-op.
func NewEmitter(url string, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		URL:        url,
		HTTPClient: &http.Client{Timeout: emitTimeout},
		Logger:     logger,
	}
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Emit fires the event without blocking the caller. The request context is
// deliberately not reused: the notification outlives the request.
func (e *Emitter) Emit(_ context.Context, event string, payload any) {
	if e == nil || e.URL == "" {
		return
	}
	body, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		e.Logger.Warn("notify marshal failed", "event", event, "error", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
		if err != nil {
			e.Logger.Warn("notify request failed", "event", event, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := e.HTTPClient.Do(req)
		if err != nil {
			e.Logger.Warn("notify delivery failed", "event", event, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			e.Logger.Warn("notify endpoint returned error", "event", event, "status", resp.StatusCode)
		}
	}()
}
