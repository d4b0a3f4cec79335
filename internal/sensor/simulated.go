package sensor

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SimulatedConfig configures a Simulated camera.
type SimulatedConfig struct {
	// FPS is the native frame rate.
	FPS float64
	// SmileProbability is the chance that a frame shows a smiling face.
	SmileProbability float64
	// FaceProbability is the chance that a frame contains a face at all.
	FaceProbability float64
	// Seed seeds the smile generator.
	Seed int64
	// Unavailable makes StartSampling fail as if no capture device existed.
	Unavailable bool
	Logger      *slog.Logger
}

// Simulated is a camera that synthesizes frames with one face at a fixed rate.
type Simulated struct {
	cfg SimulatedConfig
	log *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	seq    uint64
}

// NewSimulated creates a stopped simulated camera.
func NewSimulated(cfg SimulatedConfig) *Simulated {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.FaceProbability <= 0 {
		cfg.FaceProbability = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Simulated{
		cfg: cfg,
		log: cfg.Logger,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// StartSampling begins emitting frames to fn.
func (c *Simulated) StartSampling(fn func(Frame)) error {
	if c.cfg.Unavailable {
		return ErrSensorUnavailable
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return errors.New("simulated camera already sampling")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, fn, c.done)
	c.log.Debug("sensor: simulated camera started", "fps", c.cfg.FPS)
	return nil
}

// StopSampling stops the frame goroutine and waits for it to exit.
func (c *Simulated) StopSampling() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.log.Debug("sensor: simulated camera stopped")
}

func (c *Simulated) run(ctx context.Context, fn func(Frame), done chan struct{}) {
	defer close(done)
	limiter := rate.NewLimiter(rate.Limit(c.cfg.FPS), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		fn(c.nextFrame())
	}
}

func (c *Simulated) nextFrame() Frame {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	c.seq++
	f := Frame{Seq: c.seq, Timestamp: time.Now()}
	if c.rng.Float64() >= c.cfg.FaceProbability {
		return f
	}
	var smile float64
	if c.rng.Float64() < c.cfg.SmileProbability {
		smile = 0.5 + c.rng.Float64()*0.5
	} else {
		smile = c.rng.Float64() * 0.49
	}
	f.Faces = []Face{{Smile: smile}}
	return f
}
