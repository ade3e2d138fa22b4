package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/amishk599/hirewire/internal/ledger"
	"github.com/amishk599/hirewire/internal/model"
	"github.com/amishk599/hirewire/internal/pipeline"
	"github.com/amishk599/hirewire/internal/scheduler"
	"github.com/amishk599/hirewire/internal/store"
)

var _ pipeline.Observer = (*Server)(nil)

// Cycler is the scheduler surface the server drives.
type Cycler interface {
	Trigger(ctx context.Context) (pipeline.CycleStats, error)
	LastStats() (pipeline.CycleStats, bool)
	LastErr() error
	Running() bool
}

// Subscriber hands out per-recipient realtime streams.
type Subscriber interface {
	Subscribe(recipient string) (<-chan []byte, func())
}

// Store is what the server needs from storage.
type Store interface {
	model.JobStore
	model.JobReader
}

// Config wires a Server. Hub may be nil, which disables /ws.
type Config struct {
	Addr       string
	Cycler     Cycler
	Store      Store
	Hub        Subscriber
	Recipients []string
	Sources    []string
}

// Server exposes health, manual cycle triggers, recent matches and a
// websocket relay of realtime notifications.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	upgrader   websocket.Upgrader

	baseCtx context.Context

	matchesTotal atomic.Int64
	cyclesTotal  atomic.Int64
}

// NewServer creates the HTTP server. It does not start listening.
func NewServer(cfg Config, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		baseCtx: context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /cycles", s.handleTriggerCycle)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /jobs", s.handleRecentJobs)
	mux.HandleFunc("GET /ws", s.handleWebsocket)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs. Cycles triggered over HTTP run under ctx.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) JobMatched(string, model.Job, []string) { s.matchesTotal.Add(1) }

func (s *Server) CycleCompleted(pipeline.CycleStats) { s.cyclesTotal.Add(1) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":        "ok",
		"cycle_running": s.cfg.Cycler.Running(),
		"cycles_total":  s.cyclesTotal.Load(),
		"matches_total": s.matchesTotal.Load(),
		"sources":       s.cfg.Sources,
	}
	if err := s.cfg.Store.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("health check failed", "kind", "storage", "error", err)
		resp["status"] = "degraded"
		resp["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTriggerCycle(w http.ResponseWriter, _ *http.Request) {
	// A cycle can outlast the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	stats, err := s.cfg.Cycler.Trigger(s.baseCtx)
	if errors.Is(err, scheduler.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, "CycleInProgress", "a cycle is already running")
		return
	}
	if err != nil {
		s.logger.Error("triggered cycle failed", "kind", "cycle", "error", err)
		writeError(w, http.StatusInternalServerError, "CycleFailed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toStatsView(stats))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, ok := s.cfg.Cycler.LastStats()
	if !ok {
		writeError(w, http.StatusNotFound, "NoCycle", "no cycle has completed yet")
		return
	}
	view := toStatsView(stats)
	if err := s.cfg.Cycler.LastErr(); err != nil {
		view.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultRecentLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > store.MaxRecentLimit {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be between 1 and "+strconv.Itoa(store.MaxRecentLimit))
			return
		}
		limit = parsed
	}

	jobs, err := s.cfg.Store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list recent jobs", "kind", "storage", "limit", limit, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to list jobs")
		return
	}

	views := make([]jobView, len(jobs))
	for i, j := range jobs {
		views[i] = toJobView(j)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Hub == nil {
		writeError(w, http.StatusNotFound, "Disabled", "realtime relay is not enabled")
		return
	}
	recipient := r.URL.Query().Get("recipient")
	if recipient == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "recipient parameter is required")
		return
	}
	if !slices.Contains(s.cfg.Recipients, recipient) {
		writeError(w, http.StatusNotFound, "UnknownRecipient", "recipient is not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		s.logger.Warn("websocket upgrade failed", "recipient", recipient, "error", err)
		return
	}
	defer conn.Close()

	msgs, unsubscribe := s.cfg.Hub.Subscribe(recipient)
	defer unsubscribe()

	s.logger.Info("websocket subscribed", "recipient", recipient, "remote", r.RemoteAddr)

	// The read side only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.logger.Info("websocket closed", "recipient", recipient)
			return
		case <-s.baseCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Warn("websocket write failed", "recipient", recipient, "error", err)
				return
			}
		}
	}
}

type failureView struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type statsView struct {
	CycleID       string        `json:"cycle_id"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	DurationMS    int64         `json:"duration_ms"`
	Fetched       int           `json:"fetched"`
	New           int           `json:"new"`
	Matched       int           `json:"matched"`
	Persisted     int           `json:"persisted"`
	Published     int           `json:"published"`
	LedgerSize    int           `json:"ledger_size"`
	SourcesOK     int           `json:"sources_ok"`
	SourcesFailed int           `json:"sources_failed"`
	DigestSent    bool          `json:"digest_sent"`
	Failures      []failureView `json:"failures"`
	Error         string        `json:"error,omitempty"` // set when the cycle was interrupted or panicked
}

func toStatsView(s pipeline.CycleStats) statsView {
	failures := make([]failureView, len(s.Failures))
	for i, f := range s.Failures {
		failures[i] = failureView{Kind: pipeline.Kind(f), Message: f.Error()}
	}
	return statsView{
		CycleID:       s.CycleID,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
		DurationMS:    s.Duration().Milliseconds(),
		Fetched:       s.Fetched,
		New:           s.New,
		Matched:       s.Matched,
		Persisted:     s.Persisted,
		Published:     s.Published,
		LedgerSize:    s.LedgerSize,
		SourcesOK:     s.SourcesOK,
		SourcesFailed: s.SourcesFailed,
		DigestSent:    s.DigestSent,
		Failures:      failures,
	}
}

type jobView struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Fingerprint  string     `json:"fingerprint"`
	Title        string     `json:"title"`
	Company      string     `json:"company"`
	Location     string     `json:"location"`
	URL          string     `json:"url"`
	ContractType *string    `json:"contract_type"`
	PostedAt     *time.Time `json:"posted_at"`
	FetchedAt    time.Time  `json:"fetched_at"`
}

func toJobView(j model.Job) jobView {
	return jobView{
		ID:           j.ID,
		Source:       j.Source,
		Fingerprint:  ledger.Fingerprint(j),
		Title:        j.Title,
		Company:      j.Company,
		Location:     j.Location,
		URL:          j.URL,
		ContractType: j.ContractType,
		PostedAt:     j.PostedAt,
		FetchedAt:    j.FetchedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.status = http.StatusSwitchingProtocols
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
