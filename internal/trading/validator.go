package trading

import (
	"github.com/shopspring/decimal"
)

const (
	DefaultAmountPlaces int32 = 3
	MoneyPlaces         int32 = 8
)

var DefaultMinAmount = decimal.New(1, -DefaultAmountPlaces)

// Validator checks a trade request against a portfolio snapshot and a quote.
// It performs no mutation.
type Validator struct {
	MinAmount    decimal.Decimal
	AmountPlaces int32
	FeeRate      decimal.Decimal
}

func NewValidator(minAmount decimal.Decimal, places int32, feeRate decimal.Decimal) Validator {
	return Validator{MinAmount: minAmount, AmountPlaces: places, FeeRate: feeRate}
}

// Unit is the smallest tradable quantity.
func (v Validator) Unit() decimal.Decimal {
	return decimal.New(1, -v.AmountPlaces)
}

// Cost is the cash a buy of amount at price consumes, fee included.
func (v Validator) Cost(amount, price decimal.Decimal) decimal.Decimal {
	notional := amount.Mul(price)
	return notional.Add(v.Fee(notional))
}

func (v Validator) Fee(notional decimal.Decimal) decimal.Decimal {
	return fee(v.FeeRate, notional)
}

func fee(rate, notional decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	return notional.Mul(rate).Round(MoneyPlaces)
}

func (v Validator) Validate(p Portfolio, ticker string, action Action, spec AmountSpec, quote Quote) (ValidatedTrade, error) {
	price, ok := quote.Price(ticker)
	if !ok {
		return ValidatedTrade{}, reject(ReasonUnknownTicker, "unknown ticker %s", ticker)
	}
	if action != Buy && action != Sell {
		return ValidatedTrade{}, reject(ReasonInvalidAmount, "unknown action %q", action)
	}
	if !spec.IsAll() && !spec.Value.IsPositive() {
		return ValidatedTrade{}, reject(ReasonInvalidAmount, "amount must be positive, got %s", spec.Value)
	}

	amount := v.resolve(p, ticker, action, spec, price)
	if amount.LessThan(v.MinAmount) || amount.IsZero() {
		return ValidatedTrade{}, reject(ReasonBelowMinimum,
			"amount %s %s is below the minimum of %s", amount, ticker, v.MinAmount)
	}

	switch action {
	case Buy:
		if cost := v.Cost(amount, price); cost.GreaterThan(p.Cash) {
			return ValidatedTrade{}, reject(ReasonInsufficientFunds,
				"buying %s %s costs %s but only %s is available", amount, ticker, cost, p.Cash)
		}
	case Sell:
		if held := p.Holding(ticker).Amount; amount.GreaterThan(held) {
			return ValidatedTrade{}, reject(ReasonInsufficientHoldings,
				"cannot sell %s %s, holding %s", amount, ticker, held)
		}
	}

	return ValidatedTrade{Ticker: ticker, Action: action, Amount: amount, Price: price}, nil
}

func (v Validator) resolve(p Portfolio, ticker string, action Action, spec AmountSpec, price decimal.Decimal) decimal.Decimal {
	if !spec.IsAll() {
		return spec.Value.RoundFloor(v.AmountPlaces)
	}
	if action == Sell {
		return p.Holding(ticker).Amount
	}

	unitCost := price.Add(price.Mul(v.FeeRate))
	amount := p.Cash.Div(unitCost).RoundFloor(v.AmountPlaces)
	// Div rounds at its own precision, which can land one unit over the cash.
	for amount.IsPositive() && v.Cost(amount, price).GreaterThan(p.Cash) {
		amount = amount.Sub(v.Unit())
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
