package eventstream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/multy/internal/commands"
	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/state"
	"github.com/muurk/multy/internal/zapi"
)

// maxCommandBody bounds POST /commands request bodies.
const maxCommandBody = 64 << 10

// SnapshotView is the JSON form of one resource on the snapshot endpoints.
type SnapshotView struct {
	Resource  string                  `json:"resource"`
	Available bool                    `json:"available"`
	TakenAt   time.Time               `json:"taken_at"`
	Entities  map[string]state.Fields `json:"entities"`
}

// StatusView reports server and cache counters. Resources lists every
// resource with a snapshot or an availability problem.
type StatusView struct {
	Resources   []string       `json:"resources"`
	Unavailable []string       `json:"unavailable"`
	Stale       map[string]int `json:"stale,omitempty"`
	Subscribers int            `json:"subscribers"`
	Dropped     uint64         `json:"dropped"`
}

// CommandResponse is the JSON reply of POST /commands/{name}.
type CommandResponse struct {
	Command      string         `json:"command"`
	Output       map[string]any `json:"output,omitempty"`
	Refreshed    []string       `json:"refreshed,omitempty"`
	RefreshError string         `json:"refresh_error,omitempty"`
}

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) view(snap *state.Snapshot) SnapshotView {
	return SnapshotView{
		Resource:  snap.Resource,
		Available: s.cache.Available(snap.Resource),
		TakenAt:   snap.TakenAt,
		Entities:  snap.Entities,
	}
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps := s.cache.Snapshots()
	out := make([]SnapshotView, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, s.view(snap))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	resource := r.PathValue("resource")
	snap, ok := s.cache.Snapshot(resource)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no snapshot for %q", resource))
		return
	}
	writeJSON(w, http.StatusOK, s.view(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events := s.cache.History(r.PathValue("resource"))
	if events == nil {
		events = []state.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view := StatusView{
		Unavailable: s.cache.Unavailable(),
		Subscribers: s.cache.Subscribers(),
		Dropped:     s.cache.Dropped(),
	}
	if s.stale != nil {
		view.Stale = s.stale.Stale()
	}

	seen := map[string]bool{}
	for _, names := range [][]string{s.cache.Resources(), view.Unavailable, sortedNames(view.Stale)} {
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				view.Resources = append(view.Resources, name)
			}
		}
	}
	sort.Strings(view.Resources)
	if view.Resources == nil {
		view.Resources = []string{}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if s.exec == nil {
		writeError(w, http.StatusNotImplemented, "commands are disabled")
		return
	}

	args := map[string]any{}
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
	}

	res, err := s.exec.Execute(r.Context(), r.PathValue("name"), args)
	if err != nil {
		writeJSON(w, statusFor(err), ErrorResponse{
			Error: err.Error(),
			Kind:  kindOf(err),
			Hint:  zapi.TroubleshootingHint(err),
		})
		return
	}

	resp := CommandResponse{Command: res.Command, Output: res.Output, Refreshed: res.Refreshed}
	if res.RefreshErr != nil {
		resp.RefreshError = res.RefreshErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps a command error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case commands.IsValidationError(err):
		return http.StatusBadRequest
	case zapi.IsDeviceError(err):
		return http.StatusUnprocessableEntity
	case zapi.IsAuthError(err):
		return http.StatusBadGateway
	case zapi.IsTimeout(err):
		return http.StatusGatewayTimeout
	case zapi.IsNetworkError(err):
		return http.StatusBadGateway
	case errors.Is(err, zapi.ErrDispatcherClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func kindOf(err error) string {
	if commands.IsValidationError(err) {
		return "validation"
	}
	var zerr *zapi.Error
	if errors.As(err, &zerr) {
		return zerr.Kind.String()
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}

func sortedNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
