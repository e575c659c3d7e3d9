package trading

import (
	"errors"
	"fmt"
)

// Reason classifies why the validator refused a trade.
type Reason string

const (
	ReasonUnknownTicker        Reason = "unknown_ticker"
	ReasonInvalidAmount        Reason = "invalid_amount"
	ReasonBelowMinimum         Reason = "below_minimum"
	ReasonInsufficientFunds    Reason = "insufficient_funds"
	ReasonInsufficientHoldings Reason = "insufficient_holdings"
)

// Rejection is a recoverable refusal reported to the caller verbatim.
type Rejection struct {
	Reason Reason
	Msg    string
}

func (r *Rejection) Error() string {
	if r.Msg == "" {
		return string(r.Reason)
	}
	return r.Msg
}

// Is matches any rejection with the same reason, so errors.Is(err, ErrBelowMinimum) works.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

var (
	ErrUnknownTicker        = &Rejection{Reason: ReasonUnknownTicker}
	ErrInvalidAmount        = &Rejection{Reason: ReasonInvalidAmount}
	ErrBelowMinimum         = &Rejection{Reason: ReasonBelowMinimum}
	ErrInsufficientFunds    = &Rejection{Reason: ReasonInsufficientFunds}
	ErrInsufficientHoldings = &Rejection{Reason: ReasonInsufficientHoldings}
)

// ErrStalePortfolio reports that the stored portfolio changed after it was
// loaded, so the write was refused.
var ErrStalePortfolio = errors.New("portfolio was modified concurrently")

func reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}
