package feedback

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sprite-ai/reqevo/internal/metrics"
	"github.com/sprite-ai/reqevo/internal/model"
)

var (
	// ErrAlreadyDecided is returned for every submission after the first valid one.
	ErrAlreadyDecided = errors.New("a decision was already recorded")
	// ErrClosed is returned for submissions that arrive after the wait ended.
	ErrClosed = errors.New("the review is closed")
)

// Session serves one batch and records at most one decision.
type Session struct {
	batch       Batch
	ids         map[int]bool
	callbackURL string
	page        PageFunc
	logger      *slog.Logger

	decided   atomic.Bool
	closed    atomic.Bool
	decisions chan model.Decision
	mux       *http.ServeMux

	submitMu sync.Mutex

	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

// NewSession prepares the handlers for b.
func NewSession(b Batch, callbackURL string, page PageFunc, logger *slog.Logger) *Session {
	if page == nil {
		page = defaultPage
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		batch:       b,
		ids:         make(map[int]bool, len(b.Records)),
		callbackURL: callbackURL,
		page:        page,
		logger:      logger,
		decisions:   make(chan model.Decision, 1),
		mux:         http.NewServeMux(),
		conns:       make(map[*websocket.Conn]struct{}),
	}
	for _, r := range b.Records {
		s.ids[r.DiffID] = true
	}
	s.registerRoutes()
	return s
}

func (s *Session) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handlePage)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/batch", s.handleBatch)
	s.mux.HandleFunc("POST /api/decision", s.handleDecision)
	s.mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// Handler returns the HTTP handler.
func (s *Session) Handler() http.Handler {
	return s.mux
}

// Decisions yields the single accepted decision.
func (s *Session) Decisions() <-chan model.Decision {
	return s.decisions
}

// Close stops the session from accepting decisions. Every later Submit
// fails with ErrClosed. A decision recorded before Close stays readable
// from Decisions.
func (s *Session) Close() {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	s.closed.Store(true)
	s.decided.Store(true)
}

// CloseConns closes every open WebSocket connection.
func (s *Session) CloseConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.conns {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "review closed")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Session) track(conn *websocket.Conn) bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Session) untrack(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, conn)
}

// Submit validates sub and records it if it is the first valid decision.
func (s *Session) Submit(sub Submission) (model.Decision, error) {
	if err := s.rejectLate(); err != nil {
		return model.Decision{}, err
	}

	d, err := ParseSubmission(sub, s.ids)
	if err != nil {
		return model.Decision{}, err
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	if !s.decided.CompareAndSwap(false, true) {
		return model.Decision{}, s.rejectLate()
	}
	s.decisions <- d
	metrics.GateDecisions.WithLabelValues(d.Action.String()).Inc()
	return d, nil
}

func (s *Session) rejectLate() error {
	switch {
	case s.closed.Load():
		return ErrClosed
	case s.decided.Load():
		return ErrAlreadyDecided
	}
	return nil
}

// submitStatus maps a Submit error to an HTTP status.
func submitStatus(err error) int {
	var perr *model.FeedbackProtocolError
	switch {
	case errors.Is(err, ErrAlreadyDecided), errors.Is(err, ErrClosed):
		return http.StatusConflict
	case errors.As(err, &perr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Session) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "decided": s.decided.Load(), "closed": s.closed.Load()})
}

func (s *Session) handleBatch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.batch)
}

func (s *Session) handlePage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.page(&buf, s.batch, s.callbackURL); err != nil {
		s.logger.Error("render review page", "error", err)
		http.Error(w, "rendering review page failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Session) handleDecision(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := readJSON(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if _, err := s.Submit(sub); err != nil {
		status := submitStatus(err)
		s.logger.Warn("rejected review submission", "status", status, "error", err)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Warn("json encode", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
