package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rustyeddy/barsim/market"
	"github.com/rustyeddy/barsim/risk"
)

// Context is a strategy's handle on the running backtest. It is only
// valid inside Init and Next.
type Context struct {
	r   *run
	pos *Position
}

// Index is the current bar index, -1 during Init.
func (c *Context) Index() int { return c.r.index }

// Bar returns the current bar. During Init it is the zero Bar.
func (c *Context) Bar() market.Bar {
	if c.r.index < 0 {
		return market.Bar{}
	}
	return c.r.bars[c.r.index]
}

func (c *Context) Time() time.Time { return c.Bar().Time }

func (c *Context) Data() *Data { return c.r.data }

func (c *Context) Symbol() string { return c.r.table.Symbol }

func (c *Context) Config() Config { return c.r.cfg }

func (c *Context) Logger() *zap.Logger { return c.r.log }

// Equity is cash plus the open position marked at the last close.
func (c *Context) Equity() float64 { return c.r.acct.equity }

func (c *Context) Cash() float64 { return c.r.acct.cash }

func (c *Context) Position() *Position { return c.pos }

// Trades returns a copy of the closed trades so far.
func (c *Context) Trades() []Trade {
	return append([]Trade(nil), c.r.acct.trades...)
}

func (c *Context) PendingOrders() []Order { return c.r.book.pending() }

// Register evaluates fn once over inputs and returns the result as a
// Series. An empty name becomes I<n>.
func (c *Context) Register(name string, fn IndicatorFunc, inputs ...[]float64) (*Series, error) {
	r := c.r
	if r.phase != PhaseInit {
		r.fault = ErrRegisterOutsideInit
		return nil, ErrRegisterOutsideInit
	}
	if fn == nil {
		return nil, fmt.Errorf("backtest: indicator %q has no function", name)
	}
	if name == "" {
		name = fmt.Sprintf("I%d", len(r.indicators)+1)
	}
	if _, dup := r.indicatorNames[name]; dup {
		return nil, fmt.Errorf("backtest: indicator %q already registered", name)
	}

	out := fn(inputs...)
	if len(out) != len(r.bars) {
		err := &IndicatorShapeError{Name: name, Want: len(r.bars), Got: len(out)}
		r.shapeErr = err
		return nil, err
	}

	s := &Series{name: name, values: append([]float64(nil), out...), r: r}
	r.indicators = append(r.indicators, s)
	r.indicatorNames[name] = struct{}{}
	return s, nil
}

// Buy submits a long entry. It fills no earlier than the next bar.
func (c *Context) Buy(req OrderRequest) (int64, error) {
	return c.r.submit(Long, req)
}

// Sell submits a short entry. To exit a long use Position().Close().
func (c *Context) Sell(req OrderRequest) (int64, error) {
	return c.r.submit(Short, req)
}

// Cancel cancels a pending order. Cancelling a protective leg leaves the
// position without it.
func (c *Context) Cancel(id int64) error {
	o, ok := c.r.book.byID[id]
	if !ok || o.Status != Pending {
		return fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	c.r.book.cancel(o, "cancelled by strategy")
	return nil
}

// RiskSize sizes a position so that a stop at stop loses riskFraction of
// current equity. See risk.SizeForRisk.
func (c *Context) RiskSize(riskFraction, entry, stop float64) (float64, error) {
	size, err := risk.SizeForRisk(c.r.acct.equity, riskFraction, entry, stop)
	if err != nil {
		rej := &OrderRejectedError{Bar: c.r.index, Reason: ReasonInvalidSizing, Msg: err.Error()}
		c.r.warn(rej.Error())
		return 0, rej
	}
	return size, nil
}

// Position is the strategy's view of the single open position.
type Position struct {
	r *run
}

func (p *Position) IsOpen() bool { return p.r.acct.pos.open }

// Side is Long or Short, or 0 when flat.
func (p *Position) Side() Side { return p.r.acct.pos.side }

func (p *Position) Size() float64 { return p.r.acct.pos.size }

func (p *Position) EntryPrice() float64 { return p.r.acct.pos.entryPrice }

func (p *Position) EntryBar() int { return p.r.acct.pos.entryBar }

func (p *Position) Tag() string { return p.r.acct.pos.tag }

// PnL is the unrealised profit at the last close, net of the entry fee.
func (p *Position) PnL() float64 {
	if p.r.index < 0 {
		return 0
	}
	return p.r.acct.unrealized(p.r.bars[p.r.index].Close)
}

func (p *Position) StopLoss() optional.Option[float64] {
	if o := p.r.book.stopLoss; o != nil {
		return o.Trigger
	}
	return optional.None[float64]()
}

func (p *Position) TakeProfit() optional.Option[float64] {
	if o := p.r.book.takeProfit; o != nil {
		return o.Limit
	}
	return optional.None[float64]()
}

// Close submits a market exit for the whole position, filled at the next
// bar's open. Calling it again while the exit is pending does nothing.
func (p *Position) Close() error {
	r := p.r
	if !r.acct.pos.open {
		return r.rejectSubmit(ReasonNoPosition, "no open position to close")
	}
	if r.book.exit != nil {
		return nil
	}
	pos := r.acct.pos
	r.book.exit = r.book.add(Order{
		ParentID:   pos.orderID,
		Side:       pos.side.Opposite(),
		Size:       pos.size,
		Kind:       Market,
		Role:       RoleExit,
		Tag:        pos.tag,
		CreatedBar: r.index,
	})
	r.log.Debug("exit submitted", zap.Int("bar", r.index), zap.Int64("order_id", r.book.exit.ID))
	return nil
}

// SetStopLoss replaces the position's stop-loss. The new leg is live from
// the next bar.
func (p *Position) SetStopLoss(price float64) error {
	o, err := p.replaceLeg(RoleStopLoss, price)
	if err != nil {
		return err
	}
	p.r.book.stopLoss = o
	return nil
}

// SetTakeProfit replaces the position's take-profit. The new leg is live
// from the next bar.
func (p *Position) SetTakeProfit(price float64) error {
	o, err := p.replaceLeg(RoleTakeProfit, price)
	if err != nil {
		return err
	}
	p.r.book.takeProfit = o
	return nil
}

func (p *Position) replaceLeg(role OrderRole, price float64) (*Order, error) {
	r := p.r
	if !r.acct.pos.open {
		return nil, r.rejectSubmit(ReasonNoPosition, fmt.Sprintf("no open position for %s", role))
	}
	if !validPrice(price) {
		return nil, r.rejectSubmit(ReasonInvalidPrice, fmt.Sprintf("%s price %g", role, price))
	}

	pos := r.acct.pos
	o := Order{
		ParentID:   pos.orderID,
		Side:       pos.side.Opposite(),
		Size:       pos.size,
		Role:       role,
		Tag:        pos.tag,
		CreatedBar: r.index,
	}
	if role == RoleStopLoss {
		r.book.cancel(r.book.stopLoss, "replaced")
		o.Kind = Stop
		o.Trigger = optional.Some(price)
	} else {
		r.book.cancel(r.book.takeProfit, "replaced")
		o.Kind = Limit
		o.Limit = optional.Some(price)
	}
	return r.book.add(o), nil
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
