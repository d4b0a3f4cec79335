// Package app assembles the game, its adapters and the HTTP surface from a
// Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/lo"

	"laughgame/internal/config"
	"laughgame/internal/content"
	"laughgame/internal/game"
	"laughgame/internal/handlers"
	"laughgame/internal/score"
	"laughgame/internal/sensor"
	"laughgame/internal/sink"
)

// requestTimeout bounds every request except the event stream.
const requestTimeout = 15 * time.Second

// App is a wired game server.
type App struct {
	cfg     config.Config
	log     *slog.Logger
	camera  sensor.Sensor
	feed    *sensor.Feed
	fetcher game.Fetcher
	loader  game.Loader
	store   *game.Store
	sink    *sink.RedisSink

	// machines counts factory calls; machine n seeds from cfg.Game.Seed + n.
	machines atomic.Int64
	// parts is the sampler and aggregator of the newest machine.
	parts    atomic.Pointer[machineParts]
}

type machineParts struct {
	sampler *sensor.Sampler
	scores  *score.Aggregator
}

// Options overrides adapters, mainly for tests and the simulator.
type Options struct {
	Camera  sensor.Sensor
	Fetcher game.Fetcher
	Loader  game.Loader
}

// New builds the adapters named by cfg and starts the first game machine.
// Machines run until ctx is canceled or Close is called.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	if cfg.Game.Seed == 0 {
		cfg.Game.Seed = game.NewSeed()
	}
	a := &App{cfg: cfg, log: log}

	switch {
	case opts.Camera != nil:
		a.camera = opts.Camera
		if f, ok := opts.Camera.(*sensor.Feed); ok {
			a.feed = f
		}
	case cfg.Sensor.Mode == config.SensorFeed:
		a.feed = sensor.NewFeed()
		a.camera = a.feed
	default:
		a.camera = sensor.NewSimulated(sensor.SimulatedConfig{
			FPS:              cfg.Sensor.FPS,
			SmileProbability: cfg.Sensor.SmileProbability,
			Seed:             cfg.Game.Seed,
			Logger:           log,
		})
	}

	a.fetcher, a.loader = opts.Fetcher, opts.Loader
	if a.fetcher == nil || a.loader == nil {
		fetcher, loader := buildContent(cfg.Content)
		a.fetcher = lo.Ternary(a.fetcher == nil, fetcher, a.fetcher)
		a.loader = lo.Ternary(a.loader == nil, loader, a.loader)
	}

	store, err := game.NewStore(ctx, a.newMachine, log)
	if err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}
	a.store = store

	if cfg.Redis.Addr != "" {
		a.sink = sink.NewRedisSink(sink.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		}, log)
		if err := a.sink.Ping(ctx); err != nil {
			log.Warn("app: redis unreachable, views will be retried per update", "addr", cfg.Redis.Addr, "error", err)
		}
		go func() { _ = a.sink.Run(ctx, store.Broadcaster()) }()
	}

	log.Info("app: ready",
		"sensor", cfg.Sensor.Mode,
		"content", cfg.Content.Source,
		"round_duration", cfg.Game.RoundDuration,
		"redis", cfg.Redis.Addr != "",
		"seed", cfg.Game.Seed,
	)
	return a, nil
}

func buildContent(cfg config.ContentConf) (game.Fetcher, game.Loader) {
	if cfg.Source == config.SourceStatic {
		items := lo.Map(cfg.StaticItems, func(url string, i int) content.Item {
			return content.Item{ID: "static-" + strconv.Itoa(i+1), MediaURL: url}
		})
		return &content.Static{Items: items}, content.Nop{}
	}
	fetcher := content.NewClient(content.ClientConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Limit:   cfg.Limit,
		Timeout: cfg.FetchTimeout,
	})
	loader := content.NewMediaLoader(content.LoaderConfig{
		Timeout:     cfg.LoadTimeout,
		MaxBodySize: cfg.MaxMediaBytes,
	})
	return fetcher, loader
}

// newMachine is the store's factory: every machine gets its own aggregator
// and sampler over the shared camera.
func (a *App) newMachine(onChange func(game.Snapshot)) (*game.Machine, error) {
	scores := score.NewAggregator(a.cfg.Game.WindowSize)
	sampler := sensor.NewSampler(a.camera, scores.Add, sensor.SamplerOptions{
		Decimation: a.cfg.Sensor.Decimation,
		Threshold:  a.cfg.Sensor.SmileThreshold,
		Logger:     a.log,
	})
	a.parts.Store(&machineParts{sampler: sampler, scores: scores})
	return game.NewMachine(game.Config{
		RoundDuration: a.cfg.Game.RoundDuration,
		LossThreshold: a.cfg.Game.LossThreshold,
		Categories:    a.cfg.Game.Categories,
		FetchTimeout:  a.cfg.Content.FetchTimeout,
		LoadTimeout:   a.cfg.Content.LoadTimeout,
		Seed:          a.machineSeed(),
	}, game.Deps{
		Fetcher:  a.fetcher,
		Loader:   a.loader,
		Sampler:  sampler,
		Scores:   scores,
		Logger:   a.log,
		OnChange: onChange,
	})
}

func (a *App) machineSeed() int64 {
	seed := a.cfg.Game.Seed + a.machines.Add(1) - 1
	if seed == 0 {
		seed = a.cfg.Game.Seed
	}
	return seed
}

// Seed returns the resolved base seed shared by the camera and the machines.
func (a *App) Seed() int64 {
	return a.cfg.Game.Seed
}

// Store returns the game store.
func (a *App) Store() *game.Store {
	return a.store
}

// Feed returns the push camera, or nil when frames come from elsewhere.
func (a *App) Feed() *sensor.Feed {
	return a.feed
}

// Router returns the HTTP surface.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(timeoutExceptStream(requestTimeout))

	limiter := handlers.NewRateLimiter(a.cfg.Limits.RPS, a.cfg.Limits.Burst)
	homeHandler := handlers.NewHomeHandler(a.store, a.feed != nil, a.cfg.Game.RoundDuration).
		Report("sampler", a.samplerHealth)
	if a.feed != nil {
		homeHandler.Report("feed", func() any {
			received, forwarded := a.feed.Counts()
			return map[string]uint64{"received": received, "forwarded": forwarded}
		})
	}
	if a.sink != nil {
		homeHandler.Report("redis", func() any {
			published, failed := a.sink.Stats()
			return map[string]uint64{"published": published, "failed": failed}
		})
	}
	gameHandler := handlers.NewGameHandler(a.store, a.feed, limiter, a.log)

	homeHandler.RegisterRoutes(r)
	gameHandler.RegisterRoutes(r)
	return r
}

func (a *App) samplerHealth() any {
	p := a.parts.Load()
	if p == nil {
		return nil
	}
	return struct {
		sensor.SamplerStats
		Pending int `json:"pending"`
	}{p.sampler.Stats(), p.scores.Pending()}
}

// timeoutExceptStream applies middleware.Timeout to everything but the
// long-lived event stream.
func timeoutExceptStream(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		timed := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/stream" {
				next.ServeHTTP(w, r)
				return
			}
			timed.ServeHTTP(w, r)
		})
	}
}

// Close stops the current game and releases adapters.
func (a *App) Close() {
	a.store.Close()
	if a.feed != nil {
		a.feed.Close()
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("app: closing redis", "error", err)
		}
	}
}
