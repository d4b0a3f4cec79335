package game

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"laughgame/pkg/realtime"
)

// Factory builds a fresh Machine that reports its snapshots to onChange.
type Factory func(onChange func(Snapshot)) (*Machine, error)

// Store owns the current Machine and swaps in a new one on reset. Snapshots
// from whichever machine is current are fanned out through one broadcaster,
// so subscribers survive resets.
type Store struct {
	ctx     context.Context
	factory Factory
	log     *slog.Logger
	hub     *realtime.Broadcaster[Snapshot]

	mu      sync.Mutex
	current *Machine
	resets  int
	closed  bool
}

// NewStore creates the first machine and starts its loop.
func NewStore(ctx context.Context, factory Factory, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		ctx:     ctx,
		factory: factory,
		log:     log,
		hub:     realtime.NewBroadcaster[Snapshot](),
	}
	m, err := s.spawn()
	if err != nil {
		return nil, err
	}
	s.current = m
	return s, nil
}

func (s *Store) spawn() (*Machine, error) {
	m, err := s.factory(s.hub.Publish)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := m.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("game: machine loop exited", "error", err)
		}
	}()
	return m, nil
}

// Machine returns the current machine.
func (s *Store) Machine() *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Snapshot returns the current machine's snapshot.
func (s *Store) Snapshot() Snapshot {
	return s.Machine().Snapshot()
}

// Start forwards a start request to the current machine.
func (s *Store) Start() error {
	return s.Machine().Start()
}

// Reset discards the current machine and installs a new one in Initializing.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	old := s.current
	old.Close()

	m, err := s.spawn()
	if err != nil {
		s.log.Error("game: reset failed", "error", err)
		return err
	}
	s.current = m
	s.resets++
	s.log.Info("game: reset", "resets", s.resets, "previous_state", old.Snapshot().State)
	return nil
}

// Broadcaster returns the hub carrying every snapshot of every machine.
func (s *Store) Broadcaster() *realtime.Broadcaster[Snapshot] {
	return s.hub
}

// Close stops the current machine. The store cannot be reset afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.current.Close()
}
