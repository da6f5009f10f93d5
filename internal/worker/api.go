// ABOUTME: HTTP surface of the worker: intercepted fetches plus the /_worker control API
// ABOUTME: Covers messages, notifications, window streams, health and status

package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/mindmatters/internal/cache"
	"github.com/2389/mindmatters/internal/clients"
	"github.com/2389/mindmatters/internal/interceptor"
	"github.com/2389/mindmatters/internal/messaging"
	"github.com/2389/mindmatters/internal/notify"
	"github.com/2389/mindmatters/internal/syncq"
)

const maxMessageBody = 64 << 10

// StatusResponse is returned by GET /_worker/status.
type StatusResponse struct {
	Cache         CacheStatus           `json:"cache"`
	Connectivity  string                `json:"connectivity"`
	Interceptor   interceptor.Stats     `json:"interceptor"`
	Sync          SyncStatus            `json:"sync"`
	Notifications []notify.Notification `json:"notifications"`
	Timers        []string              `json:"timers"`
	Windows       []clients.Window      `json:"windows"`
	Uptime        string                `json:"uptime"`
}

// CacheStatus describes the current cache generation.
type CacheStatus struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Claimed     bool   `json:"claimed"`
	SkipWaiting bool   `json:"skip_waiting"`
}

// SyncStatus describes the sync queue.
type SyncStatus struct {
	Configured bool         `json:"configured"`
	LastRun    time.Time    `json:"last_run,omitzero"`
	Last       syncq.Result `json:"last"`
	Pending    int          `json:"pending"`
	StoreError string       `json:"store_error,omitempty"`
}

type clickRequest struct {
	Action string `json:"action"`
}

func (w *Worker) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /_worker/health", w.handleHealth)
	mux.HandleFunc("GET /_worker/status", w.handleStatus)
	mux.HandleFunc("POST "+messaging.MessagePath, w.handleMessageHTTP)
	mux.HandleFunc("GET /_worker/notifications", w.handleListNotifications)
	mux.HandleFunc("POST /_worker/notifications/test", w.handleTestNotification)
	mux.HandleFunc("POST /_worker/notifications/{tag}/click", w.handleNotificationClickHTTP)
	mux.HandleFunc("GET /_worker/clients", w.handleListClients)
	mux.HandleFunc("GET /_worker/clients/stream", w.handleClientStream)
	mux.HandleFunc("POST /_worker/clients/{id}/focus", w.handleClientFocus)

	// Everything else is an app request
	mux.HandleFunc("/", w.handleFetchHTTP)
}

// handleHealth returns 200 OK if the server is alive.
func (w *Worker) handleHealth(rw http.ResponseWriter, r *http.Request) {
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("OK"))
}

// handleFetchHTTP answers an app request through the fetch event.
func (w *Worker) handleFetchHTTP(rw http.ResponseWriter, r *http.Request) {
	req, err := w.interceptor.RequestFromHTTP(r)
	if err != nil {
		w.sendJSONError(rw, http.StatusBadRequest, "failed to read request body")
		return
	}

	responded := false
	err = w.dispatcher.Dispatch(r.Context(), Event{
		Kind:    EventFetch,
		Request: req,
		Respond: func(resp *cache.Response, source interceptor.Source) {
			responded = true
			interceptor.WriteResponse(rw, resp, source)
		},
	})
	if !responded {
		if err == nil {
			err = errors.New("fetch produced no response")
		}
		w.logger.Error("fetch failed", "url", req.URL.String(), "error", err)
		w.sendJSONError(rw, http.StatusInternalServerError, "internal server error")
	}
}

// handleMessageHTTP handles POST /_worker/message.
func (w *Worker) handleMessageHTTP(rw http.ResponseWriter, r *http.Request) {
	var msg messaging.Message
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageBody)).Decode(&msg); err != nil {
		w.sendJSONError(rw, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := msg.Validate(); err != nil {
		w.writeJSON(rw, http.StatusBadRequest, messaging.Reply{ID: msg.ID, Status: "rejected", Error: err.Error()})
		return
	}

	if err := w.dispatcher.Dispatch(r.Context(), Event{Kind: EventMessage, Message: &msg}); err != nil {
		w.writeJSON(rw, http.StatusInternalServerError, messaging.Reply{ID: msg.ID, Status: "error", Error: err.Error()})
		return
	}

	status := "ok"
	if msg.Type == messaging.TypeSyncNow {
		status = "accepted"
	}
	w.writeJSON(rw, http.StatusOK, messaging.Reply{ID: msg.ID, Status: status})
}

// handleListNotifications handles GET /_worker/notifications.
func (w *Worker) handleListNotifications(rw http.ResponseWriter, r *http.Request) {
	w.writeJSON(rw, http.StatusOK, w.center.List())
}

// handleTestNotification displays a notification right away.
func (w *Worker) handleTestNotification(rw http.ResponseWriter, r *http.Request) {
	n := notify.Notification{
		Tag:     "test-notification",
		Title:   "Test Notification",
		Body:    "Notifications are working.",
		Icon:    w.config.Notifications.Icon,
		Badge:   w.config.Notifications.Badge,
		URL:     w.config.Notifications.JournalPath,
		Actions: notify.DefaultActions(),
	}
	w.center.Show(r.Context(), n)
	shown, _ := w.center.Get(n.Tag)
	w.writeJSON(rw, http.StatusCreated, shown)
}

// handleNotificationClickHTTP handles POST /_worker/notifications/{tag}/click.
// The action comes from a JSON body or the "action" query parameter.
func (w *Worker) handleNotificationClickHTTP(rw http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	action := r.URL.Query().Get("action")
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req clickRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageBody)).Decode(&req); err != nil {
			w.sendJSONError(rw, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Action != "" {
			action = req.Action
		}
	}
	switch action {
	case "", notify.ActionOpen, notify.ActionDismiss:
	default:
		w.sendJSONError(rw, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
		return
	}

	err := w.dispatcher.Dispatch(r.Context(), Event{
		Kind:   EventNotificationClick,
		Tag:    tag,
		Action: action,
	})
	switch {
	case err == nil:
		rw.WriteHeader(http.StatusNoContent)
	case errors.Is(err, notify.ErrUnknownNotification):
		w.sendJSONError(rw, http.StatusNotFound, "notification not found")
	case errors.Is(err, clients.ErrNoWindow):
		w.sendJSONError(rw, http.StatusServiceUnavailable, "no app window available")
	default:
		w.sendJSONError(rw, http.StatusInternalServerError, "internal server error")
	}
}

// handleListClients handles GET /_worker/clients.
func (w *Worker) handleListClients(rw http.ResponseWriter, r *http.Request) {
	w.writeJSON(rw, http.StatusOK, w.windows.List())
}

// handleClientStream registers the caller as an app window and streams
// commands to it over SSE until the connection closes.
func (w *Worker) handleClientStream(rw http.ResponseWriter, r *http.Request) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		w.logger.Error("streaming not supported")
		w.sendJSONError(rw, http.StatusInternalServerError, "streaming not supported")
		return
	}

	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		pageURL = "/"
	}
	commands, id := w.windows.Register(r.Context(), pageURL)

	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")

	w.writeSSEEvent(rw, "registered", map[string]string{"id": id})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case cmd, ok := <-commands:
			if !ok {
				return
			}
			w.writeSSEEvent(rw, "command", cmd)
			flusher.Flush()
		}
	}
}

// handleClientFocus records that a window gained focus, optionally at a new URL.
func (w *Worker) handleClientFocus(rw http.ResponseWriter, r *http.Request) {
	if !w.windows.Focused(r.PathValue("id"), r.URL.Query().Get("url")) {
		w.sendJSONError(rw, http.StatusNotFound, "window not found")
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

// handleStatus handles GET /_worker/status.
func (w *Worker) handleStatus(rw http.ResponseWriter, r *http.Request) {
	last, lastRun := w.sync.LastResult()
	state, _ := w.monitor.State()

	resp := StatusResponse{
		Cache: CacheStatus{
			Name:        w.cache.Name(),
			State:       w.cache.State().String(),
			Claimed:     w.cache.Claimed(),
			SkipWaiting: w.cache.WaitingSkipped(),
		},
		Connectivity:  state.String(),
		Interceptor:   w.interceptor.Stats(),
		Sync:          SyncStatus{Configured: w.config.Sync.Endpoint != "", LastRun: lastRun, Last: last},
		Notifications: w.center.List(),
		Timers:        w.timers.Pending(),
		Windows:       w.windows.List(),
		Uptime:        w.now().Sub(w.startedAt).Round(time.Second).String(),
	}

	pending, err := w.store.ListPendingSync(r.Context())
	if err != nil {
		resp.Sync.StoreError = err.Error()
	}
	resp.Sync.Pending = len(pending)

	w.writeJSON(rw, http.StatusOK, resp)
}

// writeSSEEvent writes a single SSE event to the response writer.
func (w *Worker) writeSSEEvent(rw http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		w.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(rw, "event: %s\n", event)
	fmt.Fprintf(rw, "data: %s\n\n", dataJSON)
}

func (w *Worker) writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		w.logger.Debug("failed to write response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (w *Worker) sendJSONError(rw http.ResponseWriter, status int, message string) {
	w.writeJSON(rw, status, map[string]string{"error": message})
}
