package poll

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/kandalvillage/posflow/internal/orders"
	"github.com/kandalvillage/posflow/internal/store"
)

// DefaultInterval is how often the poller refreshes when not configured.
const DefaultInterval = 5 * time.Second

// Lister is the slice of the remote client the poller needs.
type Lister interface {
	ListOrders(ctx context.Context, q store.ListOrdersQuery) ([]orders.Order, error)
}

// Poller keeps an in-memory snapshot of the order list, refreshed on a fixed
// interval. Each refresh replaces the snapshot wholesale; there is no
// incremental merging. The snapshot is unscoped so pending and served orders
// survive the 04:00 day rollover; only the paid grouping is day-bounded.
type Poller struct {
	lister   Lister
	interval time.Duration
	nowFunc  func() time.Time

	// onUnauthorized fires when the remote store rejects our token; the
	// caller decides what to do (typically clear the session).
	onUnauthorized func()

	mu     sync.RWMutex
	orders []orders.Order
}

func New(lister Lister, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		lister:   lister,
		interval: interval,
		nowFunc:  time.Now,
	}
}

// OnUnauthorized registers the session-expiry callback. Must be called
// before Run.
func (p *Poller) OnUnauthorized(fn func()) {
	p.onUnauthorized = fn
}

// Run refreshes immediately, then on every tick until the context is
// cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	list, err := p.lister.ListOrders(ctx, store.ListOrdersQuery{})
	if err != nil {
		if errors.Is(err, store.ErrUnauthorized) && p.onUnauthorized != nil {
			p.onUnauthorized()
			return
		}
		// keep serving the previous snapshot on transient failures
		log.Printf("[poll] refresh: %v", err)
		return
	}

	p.mu.Lock()
	p.orders = list
	p.mu.Unlock()
}

// Snapshot returns a copy of the current order list.
func (p *Poller) Snapshot() []orders.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]orders.Order, len(p.orders))
	copy(out, p.orders)
	return out
}

// Pending returns the snapshot orders still waiting on at least one row.
func (p *Poller) Pending() []orders.Order {
	return p.filter(orders.OrderPending)
}

// Served returns the snapshot orders fully served and awaiting payment.
func (p *Poller) Served() []orders.Order {
	return p.filter(orders.OrderServed)
}

// TodayPaid returns the snapshot orders paid within the current business
// day, keyed off the payment time rather than creation time.
func (p *Poller) TodayPaid() []orders.Order {
	now := p.nowFunc()
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []orders.Order
	for _, o := range p.orders {
		if o.OrderStatus != orders.OrderPaid || o.PaymentDaytime == nil {
			continue
		}
		if orders.InBusinessDay(*o.PaymentDaytime, now) {
			out = append(out, o)
		}
	}
	return out
}

func (p *Poller) filter(status orders.OrderStatus) []orders.Order {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []orders.Order
	for _, o := range p.orders {
		if o.OrderStatus == status {
			out = append(out, o)
		}
	}
	return out
}
