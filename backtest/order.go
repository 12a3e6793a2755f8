package backtest

import (
	"math"

	"github.com/moznion/go-optional"
)

type Side int8

const (
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return "flat"
}

func (s Side) Opposite() Side { return -s }

type OrderKind uint8

const (
	Market OrderKind = iota
	Stop
	Limit
)

func (k OrderKind) String() string {
	switch k {
	case Stop:
		return "stop"
	case Limit:
		return "limit"
	}
	return "market"
}

type OrderRole uint8

const (
	RoleEntry OrderRole = iota
	RoleStopLoss
	RoleTakeProfit
	RoleExit
)

func (r OrderRole) String() string {
	switch r {
	case RoleStopLoss:
		return "stop_loss"
	case RoleTakeProfit:
		return "take_profit"
	case RoleExit:
		return "exit"
	}
	return "entry"
}

type OrderStatus uint8

const (
	Pending OrderStatus = iota
	Filled
	Cancelled
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	}
	return "pending"
}

// OrderRequest is what a strategy submits through Buy or Sell.
type OrderRequest struct {
	// Size is rounded half to even to whole units.
	Size float64

	Kind OrderKind

	// Price is the trigger of a Stop entry or the limit of a Limit entry.
	// Market entries ignore it.
	Price float64

	StopLoss   optional.Option[float64]
	TakeProfit optional.Option[float64]

	Tag string
}

// Order is one entry in the order book. Orders are never deleted: the run
// result carries the full history.
type Order struct {
	ID       int64
	ParentID int64
	Side     Side
	Size     float64
	Kind     OrderKind
	Role     OrderRole
	Tag      string

	Trigger optional.Option[float64] // Stop orders
	Limit   optional.Option[float64] // Limit orders

	// Bracket requested with an entry; becomes child orders on fill.
	StopLoss   optional.Option[float64]
	TakeProfit optional.Option[float64]

	// CreatedBar is the bar index during which the order was submitted. The
	// order can fill from CreatedBar+1 on.
	CreatedBar int

	Status    OrderStatus
	FilledBar int
	FillPrice float64
	Note      string
}

// Price returns the trigger or limit, or NaN for market orders.
func (o Order) Price() float64 {
	switch o.Kind {
	case Stop:
		return o.Trigger.TakeOr(math.NaN())
	case Limit:
		return o.Limit.TakeOr(math.NaN())
	}
	return math.NaN()
}
