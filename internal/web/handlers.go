package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/coin-sim/internal/executor"
	"github.com/camuig/coin-sim/internal/market"
	"github.com/camuig/coin-sim/internal/trading"
	"github.com/camuig/coin-sim/internal/triggers"
)

const (
	defaultLimit = 20
	defaultHours = 24
	maxHours     = 24 * 30
)

type tradeRequest struct {
	User   string             `json:"user"`
	Ticker string             `json:"ticker"`
	Action string             `json:"action"`
	Amount trading.AmountSpec `json:"amount"`
}

type triggerRequest struct {
	User         string              `json:"user"`
	Ticker       string              `json:"ticker"`
	Direction    string              `json:"direction"`
	TriggerPrice decimal.Decimal     `json:"trigger_price"`
	Amount       trading.AmountSpec  `json:"amount"`
	GainPct      decimal.NullDecimal `json:"gain_pct"`
}

type depositRequest struct {
	User   string          `json:"user"`
	Amount decimal.Decimal `json:"amount"`
}

type forceEventRequest struct {
	Event  string `json:"event"`
	Ticker string `json:"ticker"`
}

type historyPoint struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

type historyResponse struct {
	Ticker    string              `json:"ticker"`
	Hours     int                 `json:"hours"`
	Points    []historyPoint      `json:"points"`
	ChangePct decimal.NullDecimal `json:"change_pct"`
}

type marketTriggersResponse struct {
	Tickers     []triggers.Summary `json:"tickers"`
	TotalOrders int                `json:"total_orders"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	q, err := s.market.Prices(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q.Map())
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(r.PathValue("ticker"))
	hours, ok := s.positiveInt(w, r, "hours", defaultHours, maxHours)
	if !ok {
		return
	}
	q, err := s.market.Prices(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if _, ok := q.Price(ticker); !ok {
		s.fail(w, &trading.Rejection{Reason: trading.ReasonUnknownTicker, Msg: "unknown ticker " + ticker})
		return
	}

	rows, err := s.archive.PriceHistory(r.Context(), ticker, s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := historyResponse{Ticker: ticker, Hours: hours, Points: make([]historyPoint, len(rows))}
	for i, row := range rows {
		resp.Points[i] = historyPoint{Price: row.Price, Timestamp: row.Timestamp}
	}
	if n := len(rows); n >= 2 && rows[0].Price.IsPositive() {
		first, last := rows[0].Price, rows[n-1].Price
		resp.ChangePct = decimal.NewNullDecimal(last.Sub(first).Div(first).Mul(decimal.NewFromInt(100)).Round(2))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	hours, ok := s.positiveInt(w, r, "hours", defaultHours, maxHours)
	if !ok {
		return
	}
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	events, err := s.archive.RecentEvents(r.Context(), s.now().Add(-time.Duration(hours)*time.Hour), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if events == nil {
		events = []market.Event{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleForceEvent(w http.ResponseWriter, r *http.Request) {
	var req forceEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	ev, err := s.events.ForceEvent(r.Context(), req.Event, req.Ticker)
	if err != nil {
		if errors.Is(err, market.ErrUnknownEvent) || errors.Is(err, market.ErrUnknownCoin) {
			s.badRequest(w, err.Error())
			return
		}
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleMarketTriggers(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.executor.MarketTriggers(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	resp := marketTriggersResponse{Tickers: summaries}
	for _, sum := range summaries {
		resp.TotalOrders += sum.Count
		resp.TotalAmount = resp.TotalAmount.Add(sum.TotalAmount)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.market.Coins())
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	view, err := s.executor.Portfolio(r.Context(), user)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	txs, err := s.executor.History(r.Context(), user, limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	if txs == nil {
		txs = []trading.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	board, err := s.executor.Leaderboard(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.User == "" {
		s.badRequest(w, "user is required")
		return
	}
	action, err := trading.ParseAction(req.Action)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	tx, err := s.executor.Trade(r.Context(), req.User, req.Ticker, action, req.Amount)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleSellAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.User == "" {
		s.badRequest(w, "user is required")
		return
	}
	txs, err := s.executor.SellAll(r.Context(), req.User)
	if err != nil {
		s.fail(w, err)
		return
	}
	if txs == nil {
		txs = []trading.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.User == "" {
		s.badRequest(w, "user is required")
		return
	}
	p, err := s.executor.Deposit(r.Context(), req.User, req.Amount)
	if err != nil {
		if errors.Is(err, executor.ErrInvalidDeposit) {
			s.badRequest(w, err.Error())
			return
		}
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var statuses []triggers.Status
	if st := r.URL.Query().Get("status"); st != "" {
		statuses = append(statuses, triggers.Status(st))
	}
	orders, err := s.executor.Triggers(r.Context(), user, statuses...)
	if err != nil {
		s.fail(w, err)
		return
	}
	if orders == nil {
		orders = []triggers.Order{}
	}
	s.writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handlePlaceTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.User == "" {
		s.badRequest(w, "user is required")
		return
	}

	var (
		o   triggers.Order
		err error
	)
	if req.GainPct.Valid {
		o, err = s.executor.PlaceGainTrigger(r.Context(), req.User, req.Ticker, req.GainPct.Decimal)
	} else {
		dir, perr := trading.ParseAction(req.Direction)
		if perr != nil {
			s.badRequest(w, perr.Error())
			return
		}
		o, err = s.executor.PlaceTrigger(r.Context(), req.User, req.Ticker, dir, req.TriggerPrice, req.Amount)
	}
	if err != nil {
		var rej *trading.Rejection
		if errors.As(err, &rej) {
			s.fail(w, err)
			return
		}
		s.badRequest(w, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleCancelTrigger(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	if err := s.executor.CancelTrigger(r.Context(), user, r.PathValue("id")); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.URL.Query().Get("user")
	if user == "" {
		s.badRequest(w, "user is required")
		return "", false
	}
	return user, true
}

func (s *Server) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	return s.positiveInt(w, r, "limit", defaultLimit, 0)
}

// positiveInt reads query parameter key, falling back to def. An upper bound
// of 0 means unbounded.
func (s *Server) positiveInt(w http.ResponseWriter, r *http.Request, key string, def, upper int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || (upper > 0 && n > upper) {
		s.badRequest(w, key+" must be a positive integer")
		return 0, false
	}
	return n, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var rej *trading.Rejection
		if errors.As(err, &rej) {
			s.fail(w, err)
			return false
		}
		s.badRequest(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps executor errors onto status codes. Rejections carry their reason
// code so clients can branch on it.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var rej *trading.Rejection
	switch {
	case errors.As(err, &rej):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: rej.Error(), Reason: string(rej.Reason)})
	case errors.Is(err, executor.ErrOrderNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}
