package backtest

import (
	"fmt"
	"math"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/risk"
)

// match runs the fill phases of bar i: pending exit and protective legs
// first, then the pending entry. It reports whether a position was open at
// any point during the bar.
func (r *run) match(i int, bar market.Bar) (exposed bool) {
	if r.acct.pos.open {
		exposed = true
		if x := r.book.exit; x != nil && x.CreatedBar < i {
			r.exitAt(x, i, bar, bar.Open, ExitClose)
		} else {
			r.checkLegs(i, bar, false)
		}
	}

	if !r.acct.pos.open && r.enter(i, bar) {
		exposed = true
	}
	return exposed
}

// checkLegs fills the stop-loss or take-profit if the bar reaches it. A leg
// the open has already gapped through fills at the open. When both legs lie
// inside the bar's range the stop-loss wins, since the intrabar path is
// unknown. On the entry bar only the stop-loss is considered.
func (r *run) checkLegs(i int, bar market.Bar, entryBar bool) {
	side := r.acct.pos.side

	sl := r.book.stopLoss
	if sl != nil && sl.CreatedBar >= i {
		sl = nil
	}
	tp := r.book.takeProfit
	if tp != nil && (entryBar || tp.CreatedBar >= i) {
		tp = nil
	}
	if sl == nil && tp == nil {
		return
	}

	if !entryBar {
		if sl != nil && gappedStop(side, sl.Price(), bar.Open) {
			r.exitAt(sl, i, bar, bar.Open, ExitStopLoss)
			return
		}
		if tp != nil && gappedTarget(side, tp.Price(), bar.Open) {
			r.exitAt(tp, i, bar, bar.Open, ExitTakeProfit)
			return
		}
	}

	if sl != nil && bar.Contains(sl.Price()) {
		r.exitAt(sl, i, bar, sl.Price(), ExitStopLoss)
		return
	}
	if tp != nil && bar.Contains(tp.Price()) {
		r.exitAt(tp, i, bar, tp.Price(), ExitTakeProfit)
	}
}

// gappedStop reports whether open is already at or beyond a protective stop.
func gappedStop(side Side, stop, open float64) bool {
	if side == Long {
		return open <= stop
	}
	return open >= stop
}

func gappedTarget(side Side, target, open float64) bool {
	if side == Long {
		return open >= target
	}
	return open <= target
}

func (r *run) exitAt(o *Order, i int, bar market.Bar, price float64, reason ExitReason) {
	price = r.clip(o, bar, price)
	r.book.fill(o, i, price)
	tr := r.acct.close(price, i, bar.Time, reason)
	r.book.closeOut("position closed")

	r.log.Debug("position closed",
		zap.Int("bar", i),
		zap.Int64("order_id", o.ID),
		zap.String("reason", string(reason)),
		zap.Float64("price", price),
		zap.Float64("pnl", tr.PnL),
	)
	r.notifyTrade(tr)
}

// entryPrice returns where a pending entry fills on bar, if it does.
func entryPrice(o *Order, bar market.Bar) (float64, bool) {
	switch o.Kind {
	case Market:
		return bar.Open, true
	case Stop:
		t := o.Price()
		if o.Side == Long && bar.High >= t {
			return math.Max(t, bar.Open), true
		}
		if o.Side == Short && bar.Low <= t {
			return math.Min(t, bar.Open), true
		}
	case Limit:
		l := o.Price()
		if o.Side == Long && bar.Low <= l {
			return math.Min(l, bar.Open), true
		}
		if o.Side == Short && bar.High >= l {
			return math.Max(l, bar.Open), true
		}
	}
	return 0, false
}

func (r *run) enter(i int, bar market.Bar) bool {
	o := r.book.entry
	if o == nil || o.CreatedBar >= i {
		return false
	}
	price, ok := entryPrice(o, bar)
	if !ok {
		return false
	}
	price = r.clip(o, bar, price)

	if !r.acct.canAfford(o.Side, o.Size, price) {
		r.rejectFill(o, i, ReasonInsufficientCash,
			fmt.Sprintf("%g units at %g exceed available funds", o.Size, price))
		return false
	}
	if msg, ok := bracketOK(o, price); !ok {
		r.rejectFill(o, i, ReasonInvalidBracket, msg)
		return false
	}

	r.book.fill(o, i, price)
	r.acct.open(o.Side, o.Size, price, i, bar.Time, o.Tag)
	r.acct.pos.orderID = o.ID

	r.log.Debug("entry filled",
		zap.Int("bar", i),
		zap.Int64("order_id", o.ID),
		zap.String("side", o.Side.String()),
		zap.Float64("size", o.Size),
		zap.Float64("price", price),
	)

	// Children keep the parent's CreatedBar: they are live as soon as the
	// parent fills.
	if o.StopLoss.IsSome() {
		r.book.stopLoss = r.book.add(Order{
			ParentID:   o.ID,
			Side:       o.Side.Opposite(),
			Size:       o.Size,
			Kind:       Stop,
			Role:       RoleStopLoss,
			Tag:        o.Tag,
			Trigger:    o.StopLoss,
			CreatedBar: o.CreatedBar,
		})
	}
	if o.TakeProfit.IsSome() {
		r.book.takeProfit = r.book.add(Order{
			ParentID:   o.ID,
			Side:       o.Side.Opposite(),
			Size:       o.Size,
			Kind:       Limit,
			Role:       RoleTakeProfit,
			Tag:        o.Tag,
			Limit:      o.TakeProfit,
			CreatedBar: o.CreatedBar,
		})
	}

	r.checkLegs(i, bar, true)
	return true
}

// bracketOK checks that the stop-loss and take-profit sit on the right
// sides of the fill price.
func bracketOK(o *Order, price float64) (string, bool) {
	sign := float64(o.Side)
	if o.StopLoss.IsSome() {
		if sl := o.StopLoss.Unwrap(); sign*(price-sl) <= 0 {
			return fmt.Sprintf("stop-loss %g not on the losing side of fill %g", sl, price), false
		}
	}
	if o.TakeProfit.IsSome() {
		if tp := o.TakeProfit.Unwrap(); sign*(tp-price) <= 0 {
			return fmt.Sprintf("take-profit %g not on the winning side of fill %g", tp, price), false
		}
	}
	return "", true
}

// clip keeps a fill inside the bar's range.
func (r *run) clip(o *Order, bar market.Bar, price float64) float64 {
	if bar.Contains(price) {
		return price
	}
	clipped := bar.Clip(price)
	r.warn(fmt.Sprintf("order %d fill %g outside [%g, %g], clipped to %g",
		o.ID, price, bar.Low, bar.High, clipped))
	return clipped
}

// submit validates and books a new entry. A pending entry is replaced.
func (r *run) submit(side Side, req OrderRequest) (int64, error) {
	size := float64(risk.RoundUnits(req.Size))
	if size <= 0 {
		return 0, r.rejectSubmit(ReasonNonPositiveSize,
			fmt.Sprintf("size %g rounds to %g units", req.Size, size))
	}
	if side == Short && !r.cfg.AllowShort {
		return 0, r.rejectSubmit(ReasonShortDisallowed, "short selling is disabled")
	}
	if r.acct.pos.open && r.book.exit == nil {
		return 0, r.rejectSubmit(ReasonPositionOpen,
			fmt.Sprintf("%s position already open", r.acct.pos.side))
	}
	if req.Kind != Market && !validPrice(req.Price) {
		return 0, r.rejectSubmit(ReasonInvalidPrice,
			fmt.Sprintf("%s entry price %g", req.Kind, req.Price))
	}
	for _, leg := range []optional.Option[float64]{req.StopLoss, req.TakeProfit} {
		if leg.IsSome() && !validPrice(leg.Unwrap()) {
			return 0, r.rejectSubmit(ReasonInvalidPrice, fmt.Sprintf("bracket price %g", leg.Unwrap()))
		}
	}
	if req.StopLoss.IsSome() && req.TakeProfit.IsSome() {
		sl, tp := req.StopLoss.Unwrap(), req.TakeProfit.Unwrap()
		if float64(side)*(tp-sl) <= 0 {
			return 0, r.rejectSubmit(ReasonInvalidBracket,
				fmt.Sprintf("stop-loss %g and take-profit %g are inverted for a %s", sl, tp, side))
		}
	}

	r.book.cancel(r.book.entry, "replaced")

	o := Order{
		Side:       side,
		Size:       size,
		Kind:       req.Kind,
		Role:       RoleEntry,
		Tag:        req.Tag,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		CreatedBar: r.index,
	}
	switch req.Kind {
	case Stop:
		o.Trigger = optional.Some(req.Price)
	case Limit:
		o.Limit = optional.Some(req.Price)
	}
	r.book.entry = r.book.add(o)

	r.log.Debug("entry submitted",
		zap.Int("bar", r.index),
		zap.Int64("order_id", r.book.entry.ID),
		zap.String("side", side.String()),
		zap.String("kind", req.Kind.String()),
		zap.Float64("size", size),
	)
	return r.book.entry.ID, nil
}

func (r *run) rejectSubmit(reason RejectReason, msg string) error {
	err := &OrderRejectedError{Bar: r.index, Reason: reason, Msg: msg}
	r.warn(err.Error())
	return err
}

func (r *run) rejectFill(o *Order, i int, reason RejectReason, msg string) {
	r.book.reject(o, reason)
	err := &OrderRejectedError{OrderID: o.ID, Bar: i, Reason: reason, Msg: msg}
	r.warn(err.Error())
}
