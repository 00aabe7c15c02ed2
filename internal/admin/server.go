package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/keeper"
	"github.com/emperorhan/restaking-keeper/internal/report"
	"github.com/emperorhan/restaking-keeper/internal/store"
)

const (
	defaultAttemptLimit = 50
	maxAttemptLimit     = 500
	defaultSummaryMin   = 60
	maxSummaryMin       = 7 * 24 * 60
)

// HealthProvider returns per-asset scheduler health. Satisfied by
// *keeper.Supervisor.
type HealthProvider interface {
	HealthSnapshots() []keeper.HealthSnapshot
}

// ReportRunner builds and logs a status report on demand. Satisfied by
// *report.Reporter.
type ReportRunner interface {
	RunNow() report.Summary
}

// Server exposes a read-mostly operator API over the running keeper.
type Server struct {
	health   HealthProvider
	attempts store.AttemptRepository
	reporter ReportRunner
	logger   *slog.Logger
	nowFn    func() time.Time
}

// ServerOption configures optional dependencies for the admin server.
type ServerOption func(*Server)

// WithAttemptRepository enables the attempt journal endpoints.
func WithAttemptRepository(repo store.AttemptRepository) ServerOption {
	return func(s *Server) { s.attempts = repo }
}

// WithReportRunner enables POST /admin/v1/report.
func WithReportRunner(r ReportRunner) ServerOption {
	return func(s *Server) { s.reporter = r }
}

func NewServer(health HealthProvider, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		health: health,
		logger: logger.With("component", "admin"),
		nowFn:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the bare admin routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/health", s.handleHealth)
	mux.HandleFunc("GET /admin/v1/attempts", s.handleListAttempts)
	mux.HandleFunc("GET /admin/v1/attempts/summary", s.handleAttemptSummary)
	mux.HandleFunc("POST /admin/v1/report", s.handleReport)
	return mux
}

// Routes wraps Handler with per-client rate limiting and the audit log.
func (s *Server) Routes(rl *RateLimitMiddleware) http.Handler {
	return AuditMiddleware(s.logger, rl.Wrap(s.Handler()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// boundedIntQuery parses an optional positive integer query param, capped at max.
func boundedIntQuery(r *http.Request, key string, fallback, max int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	if v > max {
		v = max
	}
	return v, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		writeError(w, http.StatusServiceUnavailable, "health provider not available")
		return
	}
	writeJSON(w, http.StatusOK, s.health.HealthSnapshots())
}

type attemptResponse struct {
	ID           string `json:"id"`
	ChainID      int64  `json:"chain_id"`
	Token        string `json:"token"`
	AssetSymbol  string `json:"asset_symbol"`
	AssetAddress string `json:"asset_address"`
	Outcome      string `json:"outcome"`
	TxHash       string `json:"tx_hash,omitempty"`
	Error        string `json:"error,omitempty"`
	NextCheckSec int64  `json:"next_check_sec"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
}

func toAttemptResponse(a model.RebalanceAttempt) attemptResponse {
	return attemptResponse{
		ID:           a.ID.String(),
		ChainID:      int64(a.ChainID),
		Token:        a.Token,
		AssetSymbol:  a.AssetSymbol,
		AssetAddress: a.AssetAddress,
		Outcome:      a.Outcome,
		TxHash:       a.TxHash,
		Error:        a.Error,
		NextCheckSec: int64(a.NextCheck / time.Second),
		StartedAt:    a.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:   a.FinishedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		writeError(w, http.StatusServiceUnavailable, "attempt journal not configured")
		return
	}

	q := r.URL.Query()
	chainID, err := strconv.ParseInt(q.Get("chain_id"), 10, 64)
	token := strings.TrimSpace(q.Get("token"))
	asset := strings.TrimSpace(q.Get("asset"))
	if err != nil || chainID <= 0 || token == "" || asset == "" {
		writeError(w, http.StatusBadRequest, "chain_id, token and asset query params required")
		return
	}
	limit, ok := boundedIntQuery(r, "limit", defaultAttemptLimit, maxAttemptLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	attempts, err := s.attempts.ListRecent(r.Context(), model.ChainID(chainID), token, asset, limit)
	if err != nil {
		s.logger.Error("list attempts failed", "chain_id", chainID, "token", token, "asset", asset, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]attemptResponse, len(attempts))
	for i, a := range attempts {
		resp[i] = toAttemptResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

type summaryRow struct {
	ChainID     int64  `json:"chain_id"`
	Token       string `json:"token"`
	AssetSymbol string `json:"asset_symbol"`
	Outcome     string `json:"outcome"`
	Count       int64  `json:"count"`
	LastAt      string `json:"last_at"`
}

type summaryResponse struct {
	Since string       `json:"since"`
	Rows  []summaryRow `json:"rows"`
}

func (s *Server) handleAttemptSummary(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		writeError(w, http.StatusServiceUnavailable, "attempt journal not configured")
		return
	}
	minutes, ok := boundedIntQuery(r, "window_min", defaultSummaryMin, maxSummaryMin)
	if !ok {
		writeError(w, http.StatusBadRequest, "window_min must be a positive integer")
		return
	}

	since := s.nowFn().Add(-time.Duration(minutes) * time.Minute)
	rows, err := s.attempts.SummarizeSince(r.Context(), since)
	if err != nil {
		s.logger.Error("summarize attempts failed", "since", since, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := summaryResponse{Since: since.UTC().Format(time.RFC3339), Rows: make([]summaryRow, len(rows))}
	for i, row := range rows {
		resp.Rows[i] = summaryRow{
			ChainID:     int64(row.ChainID),
			Token:       row.Token,
			AssetSymbol: row.AssetSymbol,
			Outcome:     row.Outcome,
			Count:       row.Count,
			LastAt:      row.LastAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type reportResponse struct {
	Schedulers int                     `json:"schedulers"`
	ByStatus   map[string]int          `json:"by_status"`
	Outcomes   map[string]int64        `json:"outcomes,omitempty"`
	NextDue    *keeper.HealthSnapshot  `json:"next_due,omitempty"`
	Failing    []keeper.HealthSnapshot `json:"failing,omitempty"`
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	if s.reporter == nil {
		writeError(w, http.StatusServiceUnavailable, "reporter not available")
		return
	}
	sum := s.reporter.RunNow()
	writeJSON(w, http.StatusOK, reportResponse{
		Schedulers: sum.Schedulers,
		ByStatus:   sum.ByStatus,
		Outcomes:   sum.Outcomes,
		NextDue:    sum.NextDue,
		Failing:    sum.Failing,
	})
}

var (
	_ HealthProvider = (*keeper.Supervisor)(nil)
	_ ReportRunner   = (*report.Reporter)(nil)
)
