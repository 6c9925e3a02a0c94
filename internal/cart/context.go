package cart

import (
	"context"
	"errors"
)

// ErrNoProvider is the panic value of MustFromContext outside a provider
// scope. Reaching it is a wiring bug, not a runtime condition.
var ErrNoProvider = errors.New("cart: must be used within a cart provider")

type ctxKey struct{}

func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Store)
	return s, ok && s != nil
}

func MustFromContext(ctx context.Context) *Store {
	s, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoProvider)
	}
	return s
}
