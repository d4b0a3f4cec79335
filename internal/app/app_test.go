package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"laughgame/internal/config"
	"laughgame/internal/content"
	"laughgame/internal/game"
	"laughgame/internal/sensor"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Content.Source = config.SourceStatic
	cfg.Content.StaticItems = []string{"http://media.test/1.gif", "http://media.test/2.gif"}
	cfg.Game.Seed = 5
	cfg.Game.RoundDuration = time.Minute
	return cfg
}

func newTestApp(t *testing.T, cfg config.Config, opts Options) *App {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestBuildContent_Static(t *testing.T) {
	fetcher, loader := buildContent(testConfig().Content)
	items, err := fetcher.Search(context.Background(), "any")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 || items[0].ID != "static-1" || items[1].MediaURL != "http://media.test/2.gif" {
		t.Errorf("items %+v", items)
	}
	if _, ok := loader.(content.Nop); !ok {
		t.Errorf("loader %T, want content.Nop", loader)
	}
}

func TestBuildContent_Giphy(t *testing.T) {
	cfg := config.Default().Content
	cfg.APIKey = "k"
	fetcher, loader := buildContent(cfg)
	if _, ok := fetcher.(*content.Client); !ok {
		t.Errorf("fetcher %T, want *content.Client", fetcher)
	}
	if _, ok := loader.(*content.MediaLoader); !ok {
		t.Errorf("loader %T, want *content.MediaLoader", loader)
	}
}

func TestNew_FeedModeEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.Sensor.Mode = config.SensorFeed
	a := newTestApp(t, cfg, Options{})
	if a.Feed() == nil {
		t.Fatal("feed mode should expose the feed")
	}

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.Store().Snapshot().State != game.Running {
		if time.Now().After(deadline) {
			t.Fatalf("state %v, want running", a.Store().Snapshot().State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	frames := make([]sensor.Frame, 20)
	for i := range frames {
		frames[i] = sensor.Frame{Faces: []sensor.Face{{Smile: 1}}}
	}
	body, _ := json.Marshal(map[string]any{"frames": frames})
	resp, err = http.Post(srv.URL+"/api/frames", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("POST frames: %v", err)
	}
	resp.Body.Close()

	for a.Store().Snapshot().State != game.Finished {
		if time.Now().After(deadline) {
			t.Fatalf("state %v, want finished", a.Store().Snapshot().State)
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	defer resp.Body.Close()
	var health struct {
		State   string `json:"state"`
		Feed    map[string]uint64
		Sampler struct {
			Active   bool   `json:"active"`
			Frames   uint64 `json:"frames"`
			Retained uint64 `json:"retained"`
			Samples  uint64 `json:"samples"`
			Pending  int    `json:"pending"`
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if health.Feed["received"] != 20 || health.Feed["forwarded"] != 20 {
		t.Errorf("feed counts %v, want 20 received and forwarded", health.Feed)
	}
	s := health.Sampler
	if s.Active || s.Frames != 20 || s.Retained != 5 || s.Samples != 5 || s.Pending != 0 {
		t.Errorf("sampler health %+v", s)
	}
}

func TestNew_ResolvesZeroSeed(t *testing.T) {
	cfg := testConfig()
	cfg.Game.Seed = 0
	a := newTestApp(t, cfg, Options{})
	if a.Seed() == 0 {
		t.Fatal("zero seed should be replaced by a random one")
	}
	if b := newTestApp(t, cfg, Options{}); b.Seed() == a.Seed() {
		t.Errorf("two apps drew the same random seed %d", a.Seed())
	}
}

func TestMachineSeed_AdvancesPerMachine(t *testing.T) {
	cfg := testConfig()
	cfg.Game.Seed = 7
	a := newTestApp(t, cfg, Options{})
	if a.Seed() != 7 {
		t.Fatalf("Seed %d, want 7", a.Seed())
	}
	// New already built the first machine with seed 7.
	if got := a.machineSeed(); got != 8 {
		t.Errorf("next machine seed %d, want 8", got)
	}
}

func TestNew_SimulatedCameraUnavailable(t *testing.T) {
	a := newTestApp(t, testConfig(), Options{
		Camera: sensor.NewSimulated(sensor.SimulatedConfig{Unavailable: true}),
	})
	if err := a.Store().Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := a.Store().Snapshot()
		if s.State == game.Ended {
			if s.Failure != game.CodeSensorUnavailable {
				t.Errorf("Failure %q", s.Failure)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state %v, want ended", s.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTimeoutExceptStream(t *testing.T) {
	var sawDeadline = map[string]bool{}
	h := timeoutExceptStream(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.Context().Deadline()
		sawDeadline[r.URL.Path] = ok
	}))
	for _, path := range []string{"/api/stream", "/api/state"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if sawDeadline["/api/stream"] {
		t.Error("stream request should have no deadline")
	}
	if !sawDeadline["/api/state"] {
		t.Error("state request should have a deadline")
	}
}
