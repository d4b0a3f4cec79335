// Package content looks up playable media and loads the selected item.
package content

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrMalformed is returned when a search payload cannot be used.
var ErrMalformed = errors.New("malformed search response")

// Item is one playable piece of media.
type Item struct {
	ID       string `json:"id"`
	MediaURL string `json:"media_url"`
}

var tracer = otel.Tracer("laughgame/internal/content")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Static is a fetcher that serves a fixed collection, for offline runs and tests.
type Static struct {
	Items []Item
	// Err, when set, is returned by every search.
	Err error
	// Delay simulates network latency.
	Delay time.Duration
}

// Search returns a copy of the configured items.
func (s *Static) Search(ctx context.Context, category string) ([]Item, error) {
	ctx, span := startSpan(ctx, "content.StaticSearch", attribute.String("content.category", category))
	var err error
	defer func() { endSpan(span, err) }()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			err = ctx.Err()
			return nil, err
		}
	}
	if s.Err != nil {
		err = s.Err
		return nil, err
	}
	return append([]Item{}, s.Items...), nil
}

// Nop is a loader that reports every item ready, optionally after a delay.
type Nop struct {
	Delay time.Duration
}

// Load waits for the configured delay.
func (n Nop) Load(ctx context.Context, item Item) error {
	if n.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(n.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
