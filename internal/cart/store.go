// Package cart holds a device's shopping cart in memory and mirrors it to a
// persistent storage slot after every change.
//
// A Store is the single owner of one cart. Mutations apply to memory first,
// are published to observers synchronously, and are then written to the slot
// in the background; the returned *Write reports when that write lands.
package cart

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

type options struct {
	log     *zap.Logger
	metrics *Metrics
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

type Store struct {
	key     string
	slot    Slot
	log     *zap.Logger
	metrics *Metrics

	// mu guards items. Every mutation replaces items with a fresh slice, so a
	// published slice is never modified afterwards.
	mu    sync.RWMutex
	items []LineItem

	// pubMu keeps observer notifications in mutation order.
	pubMu sync.Mutex

	obsMu     sync.Mutex
	observers map[uint64]func([]LineItem)
	nextObs   uint64

	w *writer
}

func NewStore(slot Slot, key string, opts ...Option) *Store {
	o := buildOptions(opts)
	log := o.log.With(zap.String("cart_key", key))

	return &Store{
		key:       key,
		slot:      slot,
		log:       log,
		metrics:   o.metrics,
		items:     []LineItem{},
		observers: map[uint64]func([]LineItem){},
		w:         newWriter(slot, key, log, o.metrics),
	}
}

func (s *Store) Key() string { return s.key }

// Load replaces the cart with the snapshot stored in the slot, or with an
// empty cart when the slot has never been written. A read failure or a
// malformed snapshot is returned and leaves the cart untouched.
func (s *Store) Load(ctx context.Context) error {
	raw, ok, err := s.slot.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load cart %q: %w", s.key, err)
	}

	items := []LineItem{}
	if ok {
		items, err = decodeSnapshot(raw)
		if err != nil {
			return fmt.Errorf("load cart %q: %w", s.key, err)
		}
	}

	s.mu.Lock()
	s.items = items
	s.pubMu.Lock()
	s.mu.Unlock()

	s.notify(items)
	s.pubMu.Unlock()

	s.log.Debug("cart loaded", zap.Bool("found", ok), zap.Int("items", len(items)))
	return nil
}

// Items returns a copy of the cart in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// AddToCart appends item with quantity 1, whatever quantity it carries. An
// item whose id is already in the cart is ignored: nothing is merged,
// published or written, and the returned Write is a completed no-op.
func (s *Store) AddToCart(item LineItem) *Write {
	s.mu.Lock()

	for _, it := range s.items {
		if it.ID == item.ID {
			s.mu.Unlock()
			s.metrics.mutation(opAdd, resultDuplicate)
			return noopWrite()
		}
	}

	item.Quantity = 1
	next := make([]LineItem, 0, len(s.items)+1)
	next = append(next, s.items...)
	next = append(next, item)

	s.metrics.mutation(opAdd, resultApplied)
	return s.commit(next)
}

// Increment adds one to the quantity of every item with the given id. An
// unknown id changes nothing but the cart is still published and written.
func (s *Store) Increment(id string) *Write {
	return s.adjust(id, 1, opIncrement)
}

// Decrement subtracts one from the quantity of every item with the given id.
// There is no floor: quantities reach zero and go negative, and the item stays
// in the cart.
func (s *Store) Decrement(id string) *Write {
	return s.adjust(id, -1, opDecrement)
}

func (s *Store) adjust(id string, delta int, op string) *Write {
	s.mu.Lock()

	next := slices.Clone(s.items)
	matched := false
	for i := range next {
		if next[i].ID == id {
			next[i].Quantity += delta
			matched = true
		}
	}

	if matched {
		s.metrics.mutation(op, resultApplied)
	} else {
		s.metrics.mutation(op, resultUnmatched)
	}
	return s.commit(next)
}

// commit installs next, queues its write and notifies observers. It is
// entered with s.mu held and releases it.
func (s *Store) commit(next []LineItem) *Write {
	s.items = next
	w := s.w.enqueue(next)

	s.pubMu.Lock()
	s.mu.Unlock()

	s.notify(next)
	s.pubMu.Unlock()

	return w
}

// Subscribe registers fn to receive the cart after every change. fn runs on
// the mutating goroutine, in mutation order, and must not mutate the store.
func (s *Store) Subscribe(fn func([]LineItem)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) notify(items []LineItem) {
	s.obsMu.Lock()
	fns := make([]func([]LineItem), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(slices.Clone(items))
	}
}

// Flush writes the current cart and waits for that write, which also covers
// every write queued before it.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	w := s.w.enqueue(s.items)
	s.mu.RUnlock()
	return w.Wait(ctx)
}

// Close drains pending writes. Mutations after Close still change memory but
// their writes fail with ErrStoreClosed.
func (s *Store) Close(ctx context.Context) error {
	return s.w.close(ctx)
}
