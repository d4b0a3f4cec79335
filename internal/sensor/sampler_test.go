package sensor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// sampleLog is a concurrency-safe sink.
type sampleLog struct {
	mu      sync.Mutex
	samples []bool
}

func (l *sampleLog) add(v bool) {
	l.mu.Lock()
	l.samples = append(l.samples, v)
	l.mu.Unlock()
}

func (l *sampleLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.samples)
}

func (l *sampleLog) snapshot() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.samples...)
}

// recordingSensor keeps every callback it was given and counts start/stop calls.
type recordingSensor struct {
	mu        sync.Mutex
	callbacks []func(Frame)
	starts    int
	stops     int
	err       error
}

func (r *recordingSensor) StartSampling(fn func(Frame)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.err != nil {
		return r.err
	}
	r.callbacks = append(r.callbacks, fn)
	return nil
}

func (r *recordingSensor) StopSampling() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
}

func (r *recordingSensor) callback(i int) func(Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callbacks[i]
}

func smileFrame(smile float64) Frame {
	return Frame{Faces: []Face{{Smile: smile}}}
}

func TestSampler_DecimatesEveryFourthFrame(t *testing.T) {
	feed := NewFeed()
	var log sampleLog
	s := NewSampler(feed, log.add, SamplerOptions{})
	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer s.Deactivate()

	// Only frames 4, 8 and 12 are retained; give them a smile so they are
	// distinguishable from the skipped ones.
	for i := 1; i <= 13; i++ {
		smile := 0.0
		if i%4 == 0 {
			smile = 0.9
		}
		feed.Push(smileFrame(smile))
	}

	got := log.snapshot()
	if len(got) != 3 {
		t.Fatalf("samples %v, want 3", got)
	}
	for i, v := range got {
		if !v {
			t.Errorf("sample %d false, want retained smiling frame", i)
		}
	}
	stats := s.Stats()
	if stats.Frames != 13 || stats.Retained != 3 || stats.Samples != 3 {
		t.Errorf("stats %+v, want 13 frames, 3 retained, 3 samples", stats)
	}
}

func TestSampler_Threshold(t *testing.T) {
	tests := []struct {
		smile float64
		want  bool
	}{
		{0, false},
		{0.3, false},
		{0.49, false},
		{0.5, true},
		{0.95, true},
	}
	for _, tt := range tests {
		feed := NewFeed()
		var log sampleLog
		s := NewSampler(feed, log.add, SamplerOptions{Decimation: 1})
		if err := s.Activate(); err != nil {
			t.Fatalf("Activate: %v", err)
		}
		feed.Push(smileFrame(tt.smile))
		s.Deactivate()

		got := log.snapshot()
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("smile %v: samples %v, want [%v]", tt.smile, got, tt.want)
		}
	}
}

func TestSampler_OneSamplePerFace(t *testing.T) {
	feed := NewFeed()
	var log sampleLog
	s := NewSampler(feed, log.add, SamplerOptions{Decimation: 1})
	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer s.Deactivate()

	feed.Push(Frame{})
	if log.len() != 0 {
		t.Fatalf("frame without faces produced %d samples", log.len())
	}
	feed.Push(Frame{Faces: []Face{{Smile: 0.9}, {Smile: 0.1}}})
	got := log.snapshot()
	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("samples %v, want [true false]", got)
	}
}

func TestSampler_ActivateDeactivateIdempotent(t *testing.T) {
	rs := &recordingSensor{}
	s := NewSampler(rs, func(bool) {}, SamplerOptions{})

	for i := 0; i < 3; i++ {
		if err := s.Activate(); err != nil {
			t.Fatalf("Activate: %v", err)
		}
	}
	if rs.starts != 1 {
		t.Errorf("StartSampling called %d times, want 1", rs.starts)
	}
	if !s.Active() {
		t.Error("sampler should be active")
	}

	s.Deactivate()
	s.Deactivate()
	if rs.stops != 1 {
		t.Errorf("StopSampling called %d times, want 1", rs.stops)
	}
	if s.Active() {
		t.Error("sampler should be inactive")
	}
}

func TestSampler_ActivationFailure(t *testing.T) {
	rs := &recordingSensor{err: ErrSensorUnavailable}
	s := NewSampler(rs, func(bool) {}, SamplerOptions{})

	err := s.Activate()
	if !errors.Is(err, ErrSensorUnavailable) {
		t.Fatalf("Activate error %v, want ErrSensorUnavailable", err)
	}
	if s.Active() {
		t.Error("sampler must stay inactive after a failed activation")
	}
	s.Deactivate()
	if rs.stops != 0 {
		t.Errorf("StopSampling called %d times on a never-started sensor", rs.stops)
	}
}

func TestSampler_StaleGenerationIgnored(t *testing.T) {
	rs := &recordingSensor{}
	var log sampleLog
	s := NewSampler(rs, log.add, SamplerOptions{Decimation: 1})

	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	s.Deactivate()
	if err := s.Activate(); err != nil {
		t.Fatalf("re-Activate: %v", err)
	}
	defer s.Deactivate()

	rs.callback(0)(smileFrame(0.9))
	if log.len() != 0 {
		t.Fatal("frame from a superseded activation reached the sink")
	}
	rs.callback(1)(smileFrame(0.9))
	if log.len() != 1 {
		t.Fatalf("current activation delivered %d samples, want 1", log.len())
	}
}

func TestSampler_NoSamplesAfterDeactivate(t *testing.T) {
	cam := NewSimulated(SimulatedConfig{FPS: 2000, SmileProbability: 0.5, Seed: 1})
	var delivered atomic.Int64
	s := NewSampler(cam, func(bool) { delivered.Add(1) }, SamplerOptions{Decimation: 1})

	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for delivered.Load() < 20 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if delivered.Load() == 0 {
		t.Fatal("simulated camera delivered nothing")
	}

	s.Deactivate()
	atStop := delivered.Load()
	time.Sleep(50 * time.Millisecond)
	if after := delivered.Load(); after != atStop {
		t.Errorf("%d samples delivered after Deactivate returned", after-atStop)
	}
}

func TestSampler_DeactivateFromConcurrentPushes(t *testing.T) {
	feed := NewFeed()
	var delivered atomic.Int64
	s := NewSampler(feed, func(bool) { delivered.Add(1) }, SamplerOptions{Decimation: 1})
	if err := s.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					feed.Push(smileFrame(0.9))
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	s.Deactivate()
	atStop := delivered.Load()
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	if after := delivered.Load(); after != atStop {
		t.Errorf("%d samples delivered after Deactivate returned", after-atStop)
	}
}
