package content

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	// DefaultTimeout bounds a single request when the context has no earlier deadline.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBodySize caps downloaded media.
	DefaultMaxBodySize = 16 << 20
)

func newHTTPClient(name string, dial fasthttp.DialFunc, timeout time.Duration, maxBody int) *fasthttp.Client {
	return &fasthttp.Client{
		Name:                name,
		Dial:                dial,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxResponseBodySize: maxBody,
		MaxConnsPerHost:     16,
	}
}

// doContext performs req honoring the earlier of ctx's deadline and timeout.
// fasthttp has no context support, so cancellation is checked up front.
func doContext(ctx context.Context, c *fasthttp.Client, timeout time.Duration, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.DoDeadline(req, resp, deadline)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
