package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultSearchLimit is the number of results requested per search.
const DefaultSearchLimit = 50

// ClientConfig configures a Giphy-compatible search client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Limit   int
	Timeout time.Duration
	// Dial overrides the connection dialer; tests use an in-memory listener.
	Dial fasthttp.DialFunc
}

// Client searches a Giphy-compatible API.
type Client struct {
	base    string
	apiKey  string
	limit   int
	timeout time.Duration
	http    *fasthttp.Client
}

// NewClient creates a search client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSearchLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limit:   cfg.Limit,
		timeout: cfg.Timeout,
		http:    newHTTPClient("laughgame-search", cfg.Dial, cfg.Timeout, 0),
	}
}

type searchResponse struct {
	Data []searchItem `json:"data"`
}

type searchItem struct {
	ID     string `json:"id"`
	Images struct {
		Original struct {
			URL string `json:"url"`
		} `json:"original"`
	} `json:"images"`
}

// Search returns the items matching category. Zero results yield an empty,
// non-nil slice.
func (c *Client) Search(ctx context.Context, category string) ([]Item, error) {
	ctx, span := startSpan(ctx, "content.Search",
		attribute.String("content.category", category),
		attribute.Int("content.limit", c.limit),
	)
	items, err := c.search(ctx, category)
	if err == nil {
		span.SetAttributes(attribute.Int("content.results", len(items)))
	}
	endSpan(span, err)
	return items, err
}

func (c *Client) search(ctx context.Context, category string) ([]Item, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + "/search")
	req.Header.SetMethod(fasthttp.MethodGet)
	args := req.URI().QueryArgs()
	args.Set("api_key", c.apiKey)
	args.Set("q", category)
	args.Set("limit", strconv.Itoa(c.limit))

	if err := doContext(ctx, c.http, c.timeout, req, resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", category, err)
	}
	if status := resp.StatusCode(); !isSuccess(status) {
		return nil, fmt.Errorf("search %q: unexpected status %d", category, status)
	}

	var payload searchResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("search %q: %w: %v", category, ErrMalformed, err)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("search %q: %w: missing data", category, ErrMalformed)
	}
	for i, it := range payload.Data {
		if it.ID == "" || it.Images.Original.URL == "" {
			return nil, fmt.Errorf("search %q: %w: item %d lacks id or url", category, ErrMalformed, i)
		}
	}

	return lo.Map(payload.Data, func(it searchItem, _ int) Item {
		return Item{ID: it.ID, MediaURL: it.Images.Original.URL}
	}), nil
}
