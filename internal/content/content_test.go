package content

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// serve starts handler on an in-memory listener and returns a dialer for it.
func serve(t *testing.T, handler fasthttp.RequestHandler) fasthttp.DialFunc {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		ln.Close()
	})
	return func(string) (net.Conn, error) {
		return ln.Dial()
	}
}

const samplePayload = `{"data":[
	{"id":"a1","images":{"original":{"url":"http://media.test/a1.gif"}}},
	{"id":"b2","images":{"original":{"url":"http://media.test/b2.gif"}}}
]}`

func TestClient_SearchMapsPayload(t *testing.T) {
	var gotPath, gotKey, gotQ, gotLimit string
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		gotPath = string(ctx.Path())
		gotKey = string(ctx.QueryArgs().Peek("api_key"))
		gotQ = string(ctx.QueryArgs().Peek("q"))
		gotLimit = string(ctx.QueryArgs().Peek("limit"))
		ctx.SetContentType("application/json")
		ctx.SetBodyString(samplePayload)
	})

	c := NewClient(ClientConfig{BaseURL: "http://giphy.test/v1/gifs/", APIKey: "k3y", Dial: dial})
	items, err := c.Search(context.Background(), "funny dog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotPath != "/v1/gifs/search" {
		t.Errorf("path %q, want /v1/gifs/search", gotPath)
	}
	if gotKey != "k3y" || gotQ != "funny dog" || gotLimit != "50" {
		t.Errorf("query api_key=%q q=%q limit=%q", gotKey, gotQ, gotLimit)
	}
	want := []Item{
		{ID: "a1", MediaURL: "http://media.test/a1.gif"},
		{ID: "b2", MediaURL: "http://media.test/b2.gif"},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestClient_SearchEmptyResult(t *testing.T) {
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"data":[]}`)
	})
	c := NewClient(ClientConfig{BaseURL: "http://giphy.test", Dial: dial})
	items, err := c.Search(context.Background(), "funny cat")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items %v, want empty non-nil slice", items)
	}
}

func TestClient_SearchFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{"server error", fasthttp.StatusInternalServerError, `{"data":[]}`, false},
		{"not found", fasthttp.StatusNotFound, ``, false},
		{"not json", fasthttp.StatusOK, `<html>`, true},
		{"missing data", fasthttp.StatusOK, `{"meta":{}}`, true},
		{"missing url", fasthttp.StatusOK, `{"data":[{"id":"x","images":{}}]}`, true},
		{"missing id", fasthttp.StatusOK, `{"data":[{"images":{"original":{"url":"http://m/x.gif"}}}]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dial := serve(t, func(ctx *fasthttp.RequestCtx) {
				ctx.SetStatusCode(tt.status)
				ctx.SetBodyString(tt.body)
			})
			c := NewClient(ClientConfig{BaseURL: "http://giphy.test", Dial: dial})
			items, err := c.Search(context.Background(), "funny falls")
			if err == nil {
				t.Fatalf("expected error, got items %v", items)
			}
			if got := errors.Is(err, ErrMalformed); got != tt.malformed {
				t.Errorf("errors.Is(err, ErrMalformed) = %v, want %v (err %v)", got, tt.malformed, err)
			}
		})
	}
}

func TestClient_SearchCanceledContext(t *testing.T) {
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(samplePayload)
	})
	c := NewClient(ClientConfig{BaseURL: "http://giphy.test", Dial: dial})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Search(ctx, "funny dog"); !errors.Is(err, context.Canceled) {
		t.Errorf("err %v, want context.Canceled", err)
	}
}

func TestMediaLoader_Load(t *testing.T) {
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/ok.gif":
			ctx.SetContentType("image/gif")
			ctx.SetBodyString("GIF89a...")
		case "/empty.gif":
		case "/big.gif":
			ctx.SetBodyString(strings.Repeat("x", 4096))
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})
	l := NewMediaLoader(LoaderConfig{Dial: dial, MaxBodySize: 1024, Timeout: time.Second})

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/ok.gif", false},
		{"/empty.gif", true},
		{"/missing.gif", true},
		{"/big.gif", true},
	}
	for _, tt := range tests {
		err := l.Load(context.Background(), Item{ID: tt.path, MediaURL: "http://media.test" + tt.path})
		if (err != nil) != tt.wantErr {
			t.Errorf("Load(%s) err %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}

	if err := l.Load(context.Background(), Item{ID: "none"}); err == nil {
		t.Error("Load without media url should fail")
	}
}

func TestStatic_Search(t *testing.T) {
	s := &Static{Items: []Item{{ID: "1", MediaURL: "u"}}}
	items, err := s.Search(context.Background(), "any")
	if err != nil || len(items) != 1 {
		t.Fatalf("Search = %v, %v", items, err)
	}
	items[0].ID = "mutated"
	if s.Items[0].ID != "1" {
		t.Error("Search must return a copy")
	}

	boom := errors.New("boom")
	s = &Static{Err: boom}
	if _, err := s.Search(context.Background(), "any"); !errors.Is(err, boom) {
		t.Errorf("err %v, want boom", err)
	}
}

func TestNop_LoadHonorsContext(t *testing.T) {
	if err := (Nop{}).Load(context.Background(), Item{}); err != nil {
		t.Errorf("Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Nop{Delay: time.Hour}).Load(ctx, Item{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err %v, want context.Canceled", err)
	}
}
