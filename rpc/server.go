// Package rpc exposes the ledger over HTTP: transaction submission, account
// reads and the payment index.
package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ledgerprograms/core/types"
	"ledgerprograms/crypto"
	"ledgerprograms/indexer"
	"ledgerprograms/observability"
)

// Ledger is the part of the execution host served over RPC.
type Ledger interface {
	ApplyTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
	Account(addr crypto.Address) (*types.Account, error)
	Clock() (types.Clock, error)
}

// PaymentIndex answers payment lookups by reference marker.
type PaymentIndex interface {
	FindByReference(ctx context.Context, marker crypto.Address) ([]indexer.Payment, error)
	Validate(ctx context.Context, marker crypto.Address, amount uint64, recipient crypto.Address) (*indexer.Payment, error)
}

// Config wires the server.
type Config struct {
	Ledger       Ledger
	Payments     PaymentIndex
	RateLimit    RateLimit
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server is the HTTP front of the ledger.
type Server struct {
	ledger   Ledger
	payments PaymentIndex
	limiter  *RateLimiter
	maxBody  int64
	logger   *slog.Logger
}

// NewServer validates cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("rpc: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Server{
		ledger:   cfg.Ledger,
		payments: cfg.Payments,
		limiter:  NewRateLimiter(cfg.RateLimit),
		maxBody:  maxBody,
		logger:   logger.With("component", "rpc"),
	}, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(s.limiter.Middleware)
		v1.Post("/transactions", s.handleSubmitTransaction)
		v1.Get("/accounts/{address}", s.handleGetAccount)
		v1.Get("/clock", s.handleGetClock)
		v1.Get("/payments/{reference}", s.handleFindPayments)
		v1.Get("/payments/{reference}/validate", s.handleValidatePayment)
	})
	return otelhttp.NewHandler(r, "ledger.rpc")
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned to the current request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestID honours a caller supplied X-Request-ID and otherwise assigns a
// fresh uuid.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		observability.ModuleMetrics().Observe("rpc", r.Method+" "+route, rec.status, duration)
		s.logger.Debug("request served",
			slog.String("request_id", RequestIDFromContext(r.Context())),
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.status),
			slog.Duration("duration", duration))
	})
}

// SubmitResponse is returned for a committed transaction.
type SubmitResponse struct {
	Digest crypto.Hash    `json:"digest"`
	Slot   uint64         `json:"slot"`
	Fee    uint64         `json:"fee"`
	Events []*types.Event `json:"events"`
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	var tx types.Transaction
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tx); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, &ErrorBody{Kind: types.KindValidation.String(), Message: "request body too large"})
			return
		}
		writeError(w, r, http.StatusBadRequest, &ErrorBody{Kind: types.KindValidation.String(), Message: "malformed transaction: " + err.Error()})
		return
	}
	receipt, err := s.ledger.ApplyTransaction(r.Context(), &tx)
	if err != nil {
		if types.KindOf(err) == types.KindInternal {
			s.logger.Error("apply transaction", slog.String("request_id", RequestIDFromContext(r.Context())), slog.Any("error", err))
		}
		writeLedgerError(w, r, err)
		return
	}
	events := receipt.Events
	if events == nil {
		events = []*types.Event{}
	}
	writeJSON(w, http.StatusOK, SubmitResponse{Digest: receipt.Digest, Slot: receipt.Slot, Fee: receipt.Fee, Events: events})
}

// AccountResponse is the raw account view.
type AccountResponse struct {
	Address  crypto.Address `json:"address"`
	Lamports uint64         `json:"lamports"`
	Owner    crypto.Address `json:"owner"`
	Data     string         `json:"data"`
	Exists   bool           `json:"exists"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, r, "address")
	if !ok {
		return
	}
	acct, err := s.ledger.Account(addr)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		Address:  addr,
		Lamports: acct.Lamports,
		Owner:    acct.Owner,
		Data:     hex.EncodeToString(acct.Data),
		Exists:   !acct.IsEmpty(),
	})
}

func (s *Server) handleGetClock(w http.ResponseWriter, r *http.Request) {
	clock, err := s.ledger.Clock()
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, clock)
}

func (s *Server) handleFindPayments(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w, r) {
		return
	}
	marker, ok := parseAddressParam(w, r, "reference")
	if !ok {
		return
	}
	found, err := s.payments.FindByReference(r.Context(), marker)
	if err != nil {
		s.logger.Error("find payments", slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, &ErrorBody{Kind: types.KindInternal.String(), Message: "index unavailable"})
		return
	}
	if len(found) == 0 {
		writeError(w, r, http.StatusNotFound, &ErrorBody{Kind: types.KindNotFound.String(), Message: indexer.ErrNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleValidatePayment(w http.ResponseWriter, r *http.Request) {
	if !s.requireIndex(w, r) {
		return
	}
	marker, ok := parseAddressParam(w, r, "reference")
	if !ok {
		return
	}
	query := r.URL.Query()
	amount, err := strconv.ParseUint(query.Get("amount"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, &ErrorBody{Kind: types.KindValidation.String(), Message: "amount must be an unsigned integer"})
		return
	}
	recipient, err := crypto.DecodeAddress(query.Get("recipient"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, &ErrorBody{Kind: types.KindValidation.String(), Message: err.Error()})
		return
	}
	p, err := s.payments.Validate(r.Context(), marker, amount, recipient)
	switch {
	case errors.Is(err, indexer.ErrNotFound):
		writeError(w, r, http.StatusNotFound, &ErrorBody{Kind: types.KindNotFound.String(), Message: err.Error()})
	case errors.Is(err, indexer.ErrAmountMismatch), errors.Is(err, indexer.ErrRecipientMismatch):
		writeError(w, r, http.StatusUnprocessableEntity, &ErrorBody{Kind: types.KindPrecondition.String(), Message: err.Error()})
	case err != nil:
		s.logger.Error("validate payment", slog.Any("error", err))
		writeError(w, r, http.StatusInternalServerError, &ErrorBody{Kind: types.KindInternal.String(), Message: "index unavailable"})
	default:
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) requireIndex(w http.ResponseWriter, r *http.Request) bool {
	if s.payments == nil {
		writeError(w, r, http.StatusServiceUnavailable, &ErrorBody{Kind: types.KindInternal.String(), Message: "payment index disabled"})
		return false
	}
	return true
}

func parseAddressParam(w http.ResponseWriter, r *http.Request, name string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, name))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, &ErrorBody{Kind: types.KindValidation.String(), Message: err.Error()})
		return crypto.Address{}, false
	}
	return addr, true
}
