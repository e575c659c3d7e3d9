package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/camuig/coin-sim/internal/config"
	"github.com/camuig/coin-sim/internal/executor"
	"github.com/camuig/coin-sim/internal/logger"
	"github.com/camuig/coin-sim/internal/market"
	"github.com/camuig/coin-sim/internal/metrics"
	"github.com/camuig/coin-sim/internal/storage"
)

const adminTokenHeader = "X-Admin-Token"

// Archive is the read side of stored market data.
type Archive interface {
	PriceHistory(ctx context.Context, ticker string, since time.Time) ([]storage.PricePoint, error)
	RecentEvents(ctx context.Context, since time.Time, limit int) ([]market.Event, error)
}

type EventForcer interface {
	ForceEvent(ctx context.Context, name, ticker string) (*market.Event, error)
}

type Server struct {
	httpServer *http.Server
	executor   *executor.Executor
	market     *market.Simulator
	archive    Archive
	events     EventForcer
	config     *config.Config
	logger     *logger.Logger
	now        func() time.Time
}

// NewServer wires the HTTP API. events may be nil, which leaves the admin
// event route unregistered.
func NewServer(
	exec *executor.Executor,
	sim *market.Simulator,
	archive Archive,
	events EventForcer,
	m *metrics.Metrics,
	cfg *config.Config,
	log *logger.Logger,
) *Server {
	s := &Server{
		executor: exec,
		market:   sim,
		archive:  archive,
		events:   events,
		config:   cfg,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prices", s.handlePrices)
	mux.HandleFunc("GET /api/prices/{ticker}/history", s.handlePriceHistory)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/coins", s.handleCoins)
	mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	mux.HandleFunc("GET /api/transactions", s.handleTransactions)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("POST /api/trades", s.handleTrade)
	mux.HandleFunc("POST /api/sellall", s.handleSellAll)
	mux.HandleFunc("POST /api/deposits", s.handleDeposit)
	mux.HandleFunc("GET /api/triggers", s.handleListTriggers)
	mux.HandleFunc("POST /api/triggers", s.handlePlaceTrigger)
	mux.HandleFunc("DELETE /api/triggers/{id}", s.handleCancelTrigger)
	mux.HandleFunc("GET /api/triggers/market", s.admin(s.handleMarketTriggers))
	if events != nil {
		mux.HandleFunc("POST /api/admin/events", s.admin(s.handleForceEvent))
	}
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// admin rejects requests that do not carry the configured admin token.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := s.config.Web.AdminToken
		got := r.Header.Get(adminTokenHeader)
		if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin token required"})
			return
		}
		next(w, r)
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
