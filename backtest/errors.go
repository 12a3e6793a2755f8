package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/barsim/market"
)

// BadDataError reports a bar table that breaks the data contract. It is
// returned before any bar is replayed.
type BadDataError = market.BadDataError

var (
	ErrAlreadyRun          = errors.New("backtest: engine has already run")
	ErrRegisterOutsideInit = errors.New("backtest: indicators can only be registered in Init")
	ErrUnknownOrder        = errors.New("backtest: no pending order with that id")
)

// IndicatorShapeError is returned when an indicator's output length differs
// from the bar count.
type IndicatorShapeError struct {
	Name string
	Want int
	Got  int
}

func (e *IndicatorShapeError) Error() string {
	return fmt.Sprintf("backtest: indicator %q returned %d values, want %d", e.Name, e.Got, e.Want)
}

type Phase string

const (
	PhaseInit Phase = "init"
	PhaseNext Phase = "next"
)

// StrategyError wraps an error returned by a strategy with the bar it failed
// on. Bar is -1 for Init.
type StrategyError struct {
	Bar   int
	Time  time.Time
	Phase Phase
	Err   error
}

func (e *StrategyError) Error() string {
	if e.Bar < 0 {
		return fmt.Sprintf("backtest: strategy %s: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("backtest: strategy %s at bar %d (%s): %v",
		e.Phase, e.Bar, e.Time.Format(time.RFC3339), e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

type RejectReason string

const (
	ReasonNonPositiveSize  RejectReason = "non_positive_size"
	ReasonInsufficientCash RejectReason = "insufficient_cash"
	ReasonShortDisallowed  RejectReason = "short_disallowed"
	ReasonPositionOpen     RejectReason = "position_open"
	ReasonNoPosition       RejectReason = "no_position"
	ReasonInvalidPrice     RejectReason = "invalid_price"
	ReasonInvalidBracket   RejectReason = "invalid_bracket"
	ReasonInvalidSizing    RejectReason = "invalid_sizing"
)

// OrderRejectedError describes an order the engine discarded. The run goes
// on; OrderID is 0 when the order was refused before it got an id.
type OrderRejectedError struct {
	OrderID int64
	Bar     int
	Reason  RejectReason
	Msg     string
}

func (e *OrderRejectedError) Error() string {
	s := fmt.Sprintf("backtest: order rejected at bar %d: %s", e.Bar, e.Reason)
	if e.OrderID != 0 {
		s = fmt.Sprintf("backtest: order %d rejected at bar %d: %s", e.OrderID, e.Bar, e.Reason)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

// Warning is a non-fatal event recorded in the run result.
type Warning struct {
	Bar     int
	Time    time.Time
	Message string
}
