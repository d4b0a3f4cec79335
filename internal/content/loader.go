package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
)

// LoaderConfig configures a MediaLoader.
type LoaderConfig struct {
	Timeout     time.Duration
	MaxBodySize int
	Dial        fasthttp.DialFunc
}

// MediaLoader downloads an item's media so it is ready to show.
type MediaLoader struct {
	timeout time.Duration
	http    *fasthttp.Client
}

// NewMediaLoader creates a loader.
func NewMediaLoader(cfg LoaderConfig) *MediaLoader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	return &MediaLoader{
		timeout: cfg.Timeout,
		http:    newHTTPClient("laughgame-loader", cfg.Dial, cfg.Timeout, cfg.MaxBodySize),
	}
}

// Load fetches item's media and discards it.
func (l *MediaLoader) Load(ctx context.Context, item Item) error {
	ctx, span := startSpan(ctx, "content.Load",
		attribute.String("content.item_id", item.ID),
		attribute.String("content.media_url", item.MediaURL),
	)
	n, err := l.load(ctx, item)
	if err == nil {
		span.SetAttributes(attribute.Int("content.bytes", n))
	}
	endSpan(span, err)
	return err
}

func (l *MediaLoader) load(ctx context.Context, item Item) (int, error) {
	if item.MediaURL == "" {
		return 0, errors.New("load: item has no media url")
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(item.MediaURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := doContext(ctx, l.http, l.timeout, req, resp); err != nil {
		return 0, fmt.Errorf("load %s: %w", item.ID, err)
	}
	if status := resp.StatusCode(); !isSuccess(status) {
		return 0, fmt.Errorf("load %s: unexpected status %d", item.ID, status)
	}
	n := len(resp.Body())
	if n == 0 {
		return 0, fmt.Errorf("load %s: empty body", item.ID)
	}
	return n, nil
}
