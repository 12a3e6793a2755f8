package backtest

// orderBook owns every order of a run. At most one entry is pending at a
// time, and the open position has at most one stop-loss, one take-profit
// and one exit order.
type orderBook struct {
	nextID int64
	orders []*Order
	byID   map[int64]*Order

	entry      *Order
	stopLoss   *Order
	takeProfit *Order
	exit       *Order
}

func newOrderBook() *orderBook {
	return &orderBook{byID: map[int64]*Order{}}
}

func (b *orderBook) add(o Order) *Order {
	b.nextID++
	o.ID = b.nextID
	o.Status = Pending
	o.FilledBar = -1

	p := &o
	b.orders = append(b.orders, p)
	b.byID[p.ID] = p
	return p
}

func (b *orderBook) cancel(o *Order, note string) {
	if o == nil || o.Status != Pending {
		return
	}
	o.Status = Cancelled
	o.Note = note
	b.unlink(o)
}

func (b *orderBook) reject(o *Order, reason RejectReason) {
	o.Status = Rejected
	o.Note = string(reason)
	b.unlink(o)
}

func (b *orderBook) fill(o *Order, bar int, price float64) {
	o.Status = Filled
	o.FilledBar = bar
	o.FillPrice = price
	b.unlink(o)
}

func (b *orderBook) unlink(o *Order) {
	switch o {
	case b.entry:
		b.entry = nil
	case b.stopLoss:
		b.stopLoss = nil
	case b.takeProfit:
		b.takeProfit = nil
	case b.exit:
		b.exit = nil
	}
}

// closeOut cancels every order protecting the position.
func (b *orderBook) closeOut(note string) {
	b.cancel(b.stopLoss, note)
	b.cancel(b.takeProfit, note)
	b.cancel(b.exit, note)
}

func (b *orderBook) pending() []Order {
	var out []Order
	for _, o := range []*Order{b.entry, b.stopLoss, b.takeProfit, b.exit} {
		if o != nil {
			out = append(out, *o)
		}
	}
	return out
}

func (b *orderBook) history() []Order {
	out := make([]Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = *o
	}
	return out
}
