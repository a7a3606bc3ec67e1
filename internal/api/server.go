package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"Bondr/internal/ledger"
	"Bondr/internal/logger"
	"Bondr/internal/ratelimit"
	"Bondr/internal/tx"
)

// Rejections counts requests refused before they reach the ledger.
type Rejections interface {
	Rejected(reason string)
}

// Options configures the optional parts of a Server.
type Options struct {
	Dedup      *tx.Dedup          // Dedup rejects replayed envelopes; nil uses a default window
	Limiter    *ratelimit.Limiter // Limiter throttles each signer; nil disables limiting
	Rejections Rejections         // Rejections receives refusal reasons; may be nil
	Metrics    http.Handler       // Metrics serves /metrics; may be nil
}

// Server is the HTTP API server.
type Server struct {
	addr       string             // addr is the HTTP listen address
	ledger     *ledger.Ledger     // ledger applies operations
	dedup      *tx.Dedup          // dedup remembers recently accepted envelopes
	limiter    *ratelimit.Limiter // limiter throttles signers
	rejections Rejections         // rejections counts refused requests
	metrics    http.Handler       // metrics serves the Prometheus exposition
	now        func() time.Time   // now is the clock, replaced in tests
	server     *http.Server       // server is the underlying HTTP server
}

// New creates a new HTTP API server.
func New(addr string, l *ledger.Ledger, opts Options) *Server {
	if opts.Dedup == nil {
		opts.Dedup = tx.NewDedup(tx.DefaultReplayWindow)
	}

	return &Server{
		addr:       addr,
		ledger:     l,
		dedup:      opts.Dedup,
		limiter:    opts.Limiter,
		rejections: opts.Rejections,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /op", s.handleOp)
	mux.HandleFunc("GET /escrow/{addr}", s.handleEscrow)
	mux.HandleFunc("GET /vault/{addr}", s.handleVault)
	mux.HandleFunc("GET /group/{addr}", s.handleGroup)
	mux.HandleFunc("GET /remittance/{addr}", s.handleRemittance)
	mux.HandleFunc("GET /mint/{addr}", s.handleMint)
	mux.HandleFunc("GET /token-account/{addr}", s.handleTokenAccount)
	mux.HandleFunc("GET /stats/{key}", s.handleStats)
	mux.HandleFunc("GET /remit-stats/{key}", s.handleRemitStats)
	mux.HandleFunc("GET /badge/{key}", s.handleBadge)
	mux.HandleFunc("GET /balance/{key}", s.handleBalance)
	mux.HandleFunc("GET /derive", s.handleDerive)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return mux
}

// Start starts the HTTP server in a goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.dedup.Close()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// reject counts and answers a request refused before the ledger.
func (s *Server) reject(w http.ResponseWriter, status int, reason, message string) {
	if s.rejections != nil {
		s.rejections.Rejected(reason)
	}

	logger.Warn("request rejected", "reason", reason, "error", message)
	writeError(w, status, message)
}

// statusFor maps a ledger error class to an HTTP status.
func statusFor(class ledger.Class) int {
	switch class {
	case ledger.ClassValidation:
		return http.StatusBadRequest
	case ledger.ClassAuthorization:
		return http.StatusForbidden
	case ledger.ClassConflict:
		return http.StatusConflict
	case ledger.ClassResource:
		return http.StatusUnprocessableEntity
	case ledger.ClassNotFound:
		return http.StatusNotFound
	case ledger.ClassExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError writes a ledger error with its code and class.
func writeLedgerError(w http.ResponseWriter, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, statusFor(le.Class), map[string]string{
		"error": err.Error(),
		"code":  le.Code,
		"class": string(le.Class),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
