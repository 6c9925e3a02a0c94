package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrProviderClosed = errors.New("cart provider closed")

const loadTimeout = 10 * time.Second

// Provider owns one Store per owner, all backed by the same slot. A store is
// loaded from the slot the first time its owner is opened and stays resident
// until the provider closes.
type Provider struct {
	slot    Slot
	opts    []Option
	log     *zap.Logger
	metrics *Metrics

	mu     sync.Mutex
	stores map[string]*Store
	closed bool

	group singleflight.Group
}

func NewProvider(slot Slot, opts ...Option) *Provider {
	o := buildOptions(opts)
	return &Provider{
		slot:    slot,
		opts:    opts,
		log:     o.log,
		metrics: o.metrics,
		stores:  map[string]*Store{},
	}
}

func (p *Provider) lookup(owner string) (*Store, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, ErrProviderClosed
	}
	s, ok := p.stores[owner]
	return s, ok, nil
}

// Open returns the owner's store, loading it on first use. Concurrent first
// opens share one load, which outlives any single caller: a caller whose ctx
// ends gets ctx.Err() while the others still receive the store. A failed load
// is not remembered, so the next Open tries again.
func (p *Provider) Open(ctx context.Context, owner string) (*Store, error) {
	if s, ok, err := p.lookup(owner); err != nil || ok {
		return s, err
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(owner, func() (any, error) {
		return p.load(loadCtx, owner)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Provider) load(ctx context.Context, owner string) (*Store, error) {
	if s, ok, err := p.lookup(owner); err != nil || ok {
		return s, err
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	s := NewStore(p.slot, KeyFor(owner), p.opts...)
	if err := s.Load(ctx); err != nil {
		_ = s.Close(context.Background())
		p.log.Error("cart load failed", zap.String("owner", owner), zap.Error(err))
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = s.Close(context.Background())
		return nil, ErrProviderClosed
	}
	p.stores[owner] = s
	p.metrics.openCarts(1)
	return s, nil
}

// Close stops every store, waiting for their pending writes.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	stores := p.stores
	p.stores = map[string]*Store{}
	p.mu.Unlock()

	var errs []error
	for owner, s := range stores {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
			p.log.Warn("cart close failed", zap.String("owner", owner), zap.Error(err))
		}
		p.metrics.openCarts(-1)
	}
	return errors.Join(errs...)
}
