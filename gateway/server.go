// Package gateway exposes the farming ledger over HTTP: trade ingestion
// from the execution proxy, owner funding operations, claims, and the
// read-only day/volume/reward queries.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradefarm/config"
	"tradefarm/core/state"
	"tradefarm/native/farming"
	"tradefarm/native/token"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Manager           *state.Manager
	Engine            *farming.Engine
	JWTSecret         string
	Logger            *slog.Logger
	RequestsPerMinute float64
	Burst             int
	Now               func() time.Time
}

// Server wires the ledger engine behind a chi router.
type Server struct {
	manager *state.Manager
	engine  *farming.Engine
	auth    *ownerAuth
	limiter *rateLimiter
	logger  *slog.Logger
	now     func() time.Time
	router  http.Handler
}

// New constructs the configured HTTP server.
func New(cfg Config) *Server {
	srv := &Server{
		manager: cfg.Manager,
		engine:  cfg.Engine,
		auth:    newOwnerAuth(cfg.JWTSecret),
		limiter: newRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
	if srv.logger == nil {
		srv.logger = slog.Default()
	}
	if srv.now == nil {
		srv.now = time.Now
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.With(s.limiter.middleware).Post("/trades", s.handleTrade)
		v1.With(s.auth.middleware).Post("/pool/deposit", s.handleDeposit)
		v1.With(s.auth.middleware).Post("/pool/sweep", s.handleSweep)
		v1.With(s.auth.middleware).Post("/token/mint", s.handleMint)

		v1.Get("/day", s.handleDay)
		v1.Get("/caught-up", s.handleCaughtUp)
		v1.Get("/pool", s.handlePool)
		v1.Get("/days/{day}/volume", s.dayQuery(s.engine.DailyVolume))
		v1.Get("/days/{day}/baseline", s.dayQuery(s.engine.PreviousVolume))
		v1.Get("/days/{day}/reward", s.dayQuery(s.engine.DailyReward))

		v1.Post("/accounts/{addr}/claim", s.handleClaim)
		v1.Get("/accounts/{addr}/claimable", s.handleClaimable)
		v1.Get("/accounts/{addr}/balance", s.handleBalance)
		v1.Get("/accounts/{addr}/volume/{day}", s.handleVolumeRecord)
	})
	return r
}

type tradeRequest struct {
	TradeID   string `json:"tradeId"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// maxTradeSkew bounds how far a proxy-reported trade timestamp may deviate
// from server time. Larger deviations could backdate volume into frozen
// days or finalize the epoch early against empty ones.
const maxTradeSkew = 10 * time.Minute

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	addr, err := config.ParseAddress(req.Account)
	if err != nil {
		http.Error(w, "malformed account address", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		http.Error(w, "malformed amount", http.StatusBadRequest)
		return
	}
	timestamp := s.now()
	if req.Timestamp > 0 {
		timestamp = time.Unix(req.Timestamp, 0)
		if drift := timestamp.Sub(s.now()); drift > maxTradeSkew || drift < -maxTradeSkew {
			http.Error(w, "timestamp outside accepted skew", http.StatusBadRequest)
			return
		}
	}
	tradeID := req.TradeID
	if tradeID == "" {
		tradeID = uuid.NewString()
	}
	ctx := &farming.TradeContext{
		TradeID:   tradeID,
		Account:   addr,
		Amount:    amount,
		Timestamp: timestamp,
	}
	events, err := s.manager.Update(func(txn *state.Txn) error {
		return s.engine.ObserveTrade(txn, ctx)
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logEvents(events)
	s.writeJSON(w, map[string]string{"tradeId": tradeID, "status": "accepted"})
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok || amount.Sign() <= 0 {
		http.Error(w, "malformed amount", http.StatusBadRequest)
		return
	}
	now := s.now()
	events, err := s.manager.Update(func(txn *state.Txn) error {
		program, err := txn.FarmingProgram()
		if err != nil {
			return err
		}
		if program == nil {
			return farming.ErrProgramNotFound
		}
		vault := token.NewVault(txn, token.PoolAddress)
		return s.engine.Deposit(txn, vault, program.Owner, amount, now)
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logEvents(events)
	s.writeJSON(w, map[string]string{"status": "funded", "amount": amount.String()})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	var swept *big.Int
	events, err := s.manager.Update(func(txn *state.Txn) error {
		program, err := txn.FarmingProgram()
		if err != nil {
			return err
		}
		if program == nil {
			return farming.ErrProgramNotFound
		}
		vault := token.NewVault(txn, token.PoolAddress)
		swept, err = s.engine.SweepRemainder(txn, vault, program.Owner, now)
		return err
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logEvents(events)
	s.writeJSON(w, map[string]string{"swept": swept.String()})
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// handleMint credits reward-asset units to an address. Owner-only; exists
// so the funding account can be provisioned without external tooling.
func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	addr, err := config.ParseAddress(req.Account)
	if err != nil {
		http.Error(w, "malformed account address", http.StatusBadRequest)
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok || amount.Sign() <= 0 {
		http.Error(w, "malformed amount", http.StatusBadRequest)
		return
	}
	_, err = s.manager.Update(func(txn *state.Txn) error {
		return token.Mint(txn, addr, amount)
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": "minted"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	addr, err := config.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		http.Error(w, "malformed account address", http.StatusBadRequest)
		return
	}
	now := s.now()
	var paid *big.Int
	events, err := s.manager.Update(func(txn *state.Txn) error {
		vault := token.NewVault(txn, token.PoolAddress)
		paid, err = s.engine.Claim(txn, vault, addr, now)
		return err
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logEvents(events)
	s.writeJSON(w, map[string]string{"claimed": paid.String()})
}

func (s *Server) handleClaimable(w http.ResponseWriter, r *http.Request) {
	addr, err := config.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		http.Error(w, "malformed account address", http.StatusBadRequest)
		return
	}
	var claimable *big.Int
	err = s.manager.View(func(txn *state.Txn) error {
		var viewErr error
		claimable, viewErr = s.engine.Claimable(txn, addr)
		return viewErr
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"claimable": claimable.String()})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := config.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		http.Error(w, "malformed account address", http.StatusBadRequest)
		return
	}
	var balance *big.Int
	err = s.manager.View(func(txn *state.Txn) error {
		var viewErr error
		balance, viewErr = token.BalanceOf(txn, addr)
		return viewErr
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"balance": balance.String()})
}

func (s *Server) handleVolumeRecord(w http.ResponseWriter, r *http.Request) {
	addr, err := config.ParseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		http.Error(w, "malformed account address", http.StatusBadRequest)
		return
	}
	day, err := strconv.ParseInt(chi.URLParam(r, "day"), 10, 64)
	if err != nil {
		http.Error(w, "malformed day index", http.StatusBadRequest)
		return
	}
	var volume *big.Int
	err = s.manager.View(func(txn *state.Txn) error {
		var viewErr error
		volume, viewErr = s.engine.VolumeRecord(txn, addr, day)
		return viewErr
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"volume": volume.String()})
}

func (s *Server) handleDay(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	var day int64
	err := s.manager.View(func(txn *state.Txn) error {
		var viewErr error
		day, viewErr = s.engine.CalcDay(txn, now)
		return viewErr
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, map[string]int64{"day": day})
}

func (s *Server) handleCaughtUp(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	var caughtUp bool
	err := s.manager.View(func(txn *state.Txn) error {
		var viewErr error
		caughtUp, viewErr = s.engine.IsCaughtUp(txn, now)
		return viewErr
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"caughtUp": caughtUp})
}

func (s *Server) handlePool(w http.ResponseWriter, _ *http.Request) {
	var balance *big.Int
	err := s.manager.View(func(txn *state.Txn) error {
		var viewErr error
		balance, viewErr = s.engine.TotalRewardBalance(txn)
		return viewErr
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"balance": balance.String()})
}

func (s *Server) dayQuery(query func(farming.State, int64) (*big.Int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := strconv.ParseInt(chi.URLParam(r, "day"), 10, 64)
		if err != nil {
			http.Error(w, "malformed day index", http.StatusBadRequest)
			return
		}
		var value *big.Int
		err = s.manager.View(func(txn *state.Txn) error {
			var viewErr error
			value, viewErr = query(txn, day)
			return viewErr
		})
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.writeJSON(w, map[string]string{"amount": value.String()})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, farming.ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, farming.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, farming.ErrAlreadyFunded), errors.Is(err, farming.ErrEpochActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, farming.ErrProgramNotFound):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, farming.ErrCollaboratorFailure), errors.Is(err, token.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, farming.ErrInsufficientPool):
		s.logger.Error("reward pool cannot cover claim", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		s.logger.Error("ledger operation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) logEvents(events []farming.Event) {
	for _, evt := range events {
		attrs := make([]any, 0, len(evt.Attributes)*2)
		for key, value := range evt.Attributes {
			attrs = append(attrs, key, value)
		}
		s.logger.Info(evt.Type, attrs...)
	}
}

func parseAmount(raw string) (*big.Int, bool) {
	if raw == "" {
		return big.NewInt(0), true
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, false
	}
	return value, true
}
