package sensor

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

const (
	// Decimation keeps every 4th raw frame to bound detection cost.
	Decimation = 4

	// DefaultThreshold is the smile confidence at which a face counts as smiling.
	DefaultThreshold = 0.5
)

// SamplerOptions tunes a Sampler.
type SamplerOptions struct {
	Decimation int
	Threshold  float64
	Logger     *slog.Logger
}

// SamplerStats is a snapshot of sampler counters.
type SamplerStats struct {
	Active   bool   `json:"active"`
	Frames   uint64 `json:"frames"`
	Retained uint64 `json:"retained"`
	Samples  uint64 `json:"samples"`
}

// Sampler turns camera frames into smile samples for a sink.
//
// Activate and Deactivate are idempotent. Deliveries run under the sampler's
// lock, so when Deactivate returns nothing is in flight and every later frame
// is discarded. Frames from a superseded activation are ignored by generation.
type Sampler struct {
	sensor    Sensor
	sink      func(isSmile bool)
	decim     int
	threshold float64
	log       *slog.Logger

	lifecycle sync.Mutex

	mu     sync.Mutex
	active bool
	gen    uint64
	count  int

	frames   atomic.Uint64
	retained atomic.Uint64
	samples  atomic.Uint64
}

// NewSampler creates an inactive sampler reading from s and writing to sink.
func NewSampler(s Sensor, sink func(isSmile bool), opts SamplerOptions) *Sampler {
	if opts.Decimation < 1 {
		opts.Decimation = Decimation
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sampler{
		sensor:    s,
		sink:      sink,
		decim:     opts.Decimation,
		threshold: opts.Threshold,
		log:       opts.Logger,
	}
}

// Activate starts the sensor and begins delivering samples.
func (s *Sampler) Activate() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = true
	s.gen++
	gen := s.gen
	s.count = 0
	s.mu.Unlock()

	err := s.sensor.StartSampling(func(f Frame) {
		s.deliver(gen, f)
	})
	if err != nil {
		s.mu.Lock()
		s.active = false
		s.gen++
		s.mu.Unlock()
		s.log.Warn("sensor: activation failed", "error", err)
		return fmt.Errorf("start sampling: %w", err)
	}
	s.log.Debug("sensor: sampler activated", "generation", gen)
	return nil
}

// Deactivate stops delivery and halts the sensor. No sample reaches the sink
// after it returns.
func (s *Sampler) Deactivate() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.gen++
	s.mu.Unlock()

	// Outside s.mu: a sensor whose stop waits on its delivery goroutine
	// would otherwise deadlock against deliver.
	s.sensor.StopSampling()
	s.log.Debug("sensor: sampler deactivated")
}

// Active reports whether samples are being delivered.
func (s *Sampler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stats returns the sampler counters.
func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Active:   s.Active(),
		Frames:   s.frames.Load(),
		Retained: s.retained.Load(),
		Samples:  s.samples.Load(),
	}
}

func (s *Sampler) deliver(gen uint64, f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || gen != s.gen {
		return
	}
	s.frames.Add(1)

	s.count++
	if s.count < s.decim {
		return
	}
	s.count = 0
	s.retained.Add(1)

	for _, face := range f.Faces {
		s.samples.Add(1)
		s.sink(face.Smile >= s.threshold)
	}
}
