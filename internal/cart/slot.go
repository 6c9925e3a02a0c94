package cart

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Slot is the persistent key-value storage a cart snapshot lives in.
// Get reports ok=false when the key was never written.
type Slot interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

var tracer = otel.Tracer("MiniCart/internal/cart")

type tracedSlot struct {
	next    Slot
	backend string
}

// Traced wraps a slot so every call produces a span.
func Traced(s Slot, backend string) Slot {
	return &tracedSlot{next: s, backend: backend}
}

func (t *tracedSlot) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "cart.slot."+op, trace.WithAttributes(
		attribute.String("cart.slot.backend", t.backend),
		attribute.String("cart.slot.key", key),
	))
}

func (t *tracedSlot) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := t.start(ctx, "get", key)
	defer span.End()

	v, ok, err := t.next.Get(ctx, key)
	span.SetAttributes(attribute.Bool("cart.slot.found", ok))
	record(span, err)
	return v, ok, err
}

func (t *tracedSlot) Set(ctx context.Context, key, value string) error {
	ctx, span := t.start(ctx, "set", key)
	defer span.End()

	span.SetAttributes(attribute.Int("cart.slot.bytes", len(value)))
	err := t.next.Set(ctx, key, value)
	record(span, err)
	return err
}

func (t *tracedSlot) Ping(ctx context.Context) error {
	ctx, span := t.start(ctx, "ping", "")
	defer span.End()

	err := t.next.Ping(ctx)
	record(span, err)
	return err
}

func record(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
