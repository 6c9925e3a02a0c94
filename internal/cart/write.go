package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrStoreClosed = errors.New("cart store closed")

// Write tracks one snapshot write. It completes once the snapshot, or a newer
// one that superseded it, has reached the slot.
type Write struct {
	done chan struct{}
	err  error
	noop bool
}

func newWrite() *Write {
	return &Write{done: make(chan struct{})}
}

func noopWrite() *Write {
	w := &Write{done: make(chan struct{}), noop: true}
	close(w.done)
	return w
}

func failedWrite(err error) *Write {
	w := newWrite()
	w.resolve(err)
	return w
}

func (w *Write) resolve(err error) {
	w.err = err
	close(w.done)
}

func (w *Write) Done() <-chan struct{} { return w.done }

// Noop reports that the mutation changed nothing and no write was queued.
func (w *Write) Noop() bool { return w.noop }

// Err returns the write outcome, or nil while the write is still pending.
func (w *Write) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

func (w *Write) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// writer persists snapshots in the order they were queued. Snapshots queued
// while a write is in flight are collapsed into the newest one.
type writer struct {
	slot    Slot
	key     string
	log     *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	pending []*Write
	latest  []LineItem
	closed  bool

	wake    chan struct{}
	stopped chan struct{}
}

func newWriter(slot Slot, key string, log *zap.Logger, m *Metrics) *writer {
	wr := &writer{
		slot:    slot,
		key:     key,
		log:     log,
		metrics: m,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go wr.run()
	return wr
}

// enqueue must be called in mutation order; the caller holds the store lock.
func (wr *writer) enqueue(items []LineItem) *Write {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if wr.closed {
		return failedWrite(ErrStoreClosed)
	}

	w := newWrite()
	wr.pending = append(wr.pending, w)
	wr.latest = items

	select {
	case wr.wake <- struct{}{}:
	default:
	}
	return w
}

func (wr *writer) run() {
	defer close(wr.stopped)

	for range wr.wake {
		wr.drain()
	}
	wr.drain()
}

func (wr *writer) drain() {
	for {
		wr.mu.Lock()
		batch, items := wr.pending, wr.latest
		wr.pending, wr.latest = nil, nil
		wr.mu.Unlock()

		if len(batch) == 0 {
			return
		}

		err := wr.persist(items, len(batch))
		for _, w := range batch {
			w.resolve(err)
		}
	}
}

func (wr *writer) persist(items []LineItem, batch int) error {
	start := time.Now()

	raw, err := encodeSnapshot(items)
	if err == nil {
		err = wr.slot.Set(context.Background(), wr.key, raw)
	}

	wr.metrics.write(err, time.Since(start), batch)
	if err != nil {
		wr.log.Error("cart snapshot write failed",
			zap.String("key", wr.key),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return err
	}

	wr.log.Debug("cart snapshot written",
		zap.String("key", wr.key),
		zap.Int("items", len(items)),
		zap.Int("coalesced", batch),
	)
	return nil
}

// close stops accepting snapshots and waits until everything queued so far
// has been written.
func (wr *writer) close(ctx context.Context) error {
	wr.mu.Lock()
	if !wr.closed {
		wr.closed = true
		close(wr.wake)
	}
	wr.mu.Unlock()

	select {
	case <-wr.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
