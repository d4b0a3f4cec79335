package game

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"laughgame/internal/content"
	"laughgame/pkg/realtime"
)

// DefaultLossThreshold is the score above which the player loses the round.
const DefaultLossThreshold = 0.5

// Fetcher looks up playable items for a category.
type Fetcher interface {
	Search(ctx context.Context, category string) ([]content.Item, error)
}

// Loader prepares an item for display.
type Loader interface {
	Load(ctx context.Context, item content.Item) error
}

// Sampler feeds smile samples to the score aggregator while active.
type Sampler interface {
	Activate() error
	Deactivate()
}

// Scores is the aggregator the sampler writes into.
type Scores interface {
	OnScore(fn func(score float64))
	Reset()
}

// Config holds the tunables of a Machine. Zero values take defaults.
type Config struct {
	RoundDuration time.Duration
	LossThreshold float64
	Categories    []string
	FetchTimeout  time.Duration
	LoadTimeout   time.Duration
	// Seed drives category, item and round picks. Zero seeds from crypto/rand.
	Seed int64
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Fetcher Fetcher
	Loader  Loader
	Sampler Sampler
	Scores  Scores
	Logger  *slog.Logger
	// OnChange receives each new snapshot on the machine goroutine. It must not block.
	OnChange func(Snapshot)
	Now      func() time.Time
}

type event interface{ isEvent() }

type startEvent struct{}

type fetchEvent struct {
	token uint64
	items []content.Item
	err   error
}

type loadEvent struct {
	token uint64
	err   error
}

type scoreEvent struct{ score float64 }

type deadlineEvent struct{ token uint64 }

func (startEvent) isEvent()    {}
func (fetchEvent) isEvent()    {}
func (loadEvent) isEvent()     {}
func (scoreEvent) isEvent()    {}
func (deadlineEvent) isEvent() {}

// Machine drives one game from Initializing to Finished or Ended.
//
// All state is owned by the Run goroutine. Every other goroutine (sensor,
// timers, network) only posts events into an unbounded inbox, so posting
// never blocks, even while the loop is synchronously stopping the sampler.
type Machine struct {
	cfg      Config
	fetcher  Fetcher
	loader   Loader
	sampler  Sampler
	scores   Scores
	log      *slog.Logger
	onChange func(Snapshot)
	now      func() time.Time

	inbox    *realtime.Mailbox[event]
	deadline realtime.Deadline

	ctx    context.Context
	cancel context.CancelFunc

	started      atomic.Bool
	closed       chan struct{}
	closeOnce    sync.Once
	shutdownOnce sync.Once
	done         chan struct{}

	// Owned by the Run goroutine.
	rng           *rand.Rand
	state         GameState
	clock         realtime.RoundClock
	roundID       string
	items         []content.Item
	current       content.Item
	category      string
	score         float64
	status        string
	failure       Code
	fetching      bool
	fetchToken    uint64
	fetchCancel   context.CancelFunc
	loadToken     uint64
	loadCancel    context.CancelFunc
	deadlineToken uint64
	dirty         bool

	snapMu sync.RWMutex
	snap   Snapshot
}

// NewMachine creates a machine in Initializing. Call Run to start processing events.
func NewMachine(cfg Config, deps Deps) (*Machine, error) {
	if deps.Fetcher == nil || deps.Loader == nil || deps.Sampler == nil || deps.Scores == nil {
		return nil, errors.New("game: fetcher, loader, sampler and scores are required")
	}
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = realtime.DefaultRoundDuration
	}
	if cfg.LossThreshold <= 0 {
		cfg.LossThreshold = DefaultLossThreshold
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 10 * time.Second
	}
	if cfg.Seed == 0 {
		cfg.Seed = NewSeed()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		cfg:      cfg,
		fetcher:  deps.Fetcher,
		loader:   deps.Loader,
		sampler:  deps.Sampler,
		scores:   deps.Scores,
		log:      deps.Logger,
		onChange: deps.OnChange,
		now:      deps.Now,
		inbox:    realtime.NewMailbox[event](),
		ctx:      ctx,
		cancel:   cancel,
		closed:   make(chan struct{}),
		done:     make(chan struct{}),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		state:    Initializing,
		clock:    realtime.RoundClock{Duration: cfg.RoundDuration},
	}
	m.snap = m.buildSnapshot()
	deps.Scores.OnScore(m.ScoreUpdated)
	return m, nil
}

// NewSeed returns a non-zero seed read from crypto/rand.
func NewSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	if seed := int64(binary.LittleEndian.Uint64(b[:])); seed != 0 {
		return seed
	}
	return 1
}

// Start asks the machine to begin a game, or to retry a failed fetch.
func (m *Machine) Start() error {
	return m.post(startEvent{})
}

// FetchComplete delivers a fetch result from outside the machine.
func (m *Machine) FetchComplete(items []content.Item, err error) {
	_ = m.post(fetchEvent{items: items, err: err})
}

// ScoreUpdated delivers a completed-window score.
func (m *Machine) ScoreUpdated(score float64) {
	_ = m.post(scoreEvent{score: score})
}

// DeadlineElapsed ends the round identified by token. Token 0 means the current round.
func (m *Machine) DeadlineElapsed(token uint64) {
	_ = m.post(deadlineEvent{token: token})
}

func (m *Machine) post(ev event) error {
	if !m.inbox.Post(ev) {
		return ErrClosed
	}
	return nil
}

// Snapshot returns the latest published state.
func (m *Machine) Snapshot() Snapshot {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snap
}

// Done is closed once Run has returned.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Run processes events until ctx is canceled or Close is called.
func (m *Machine) Run(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("game: machine already running")
	}
	defer close(m.done)
	defer m.shutdown()

	m.publish()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return nil
		case <-m.inbox.Wake():
			for _, ev := range m.inbox.Drain() {
				m.handle(ev)
			}
			if m.dirty {
				m.publish()
			}
		}
	}
}

// Close stops the machine: the sampler is deactivated, the deadline canceled
// and in-flight fetches and loads abandoned. Later events are discarded.
func (m *Machine) Close() {
	m.closeOnce.Do(func() {
		m.inbox.Close()
		close(m.closed)
	})
	if m.started.Load() {
		<-m.done
		return
	}
	m.shutdown()
}

func (m *Machine) shutdown() {
	m.shutdownOnce.Do(func() {
		m.sampler.Deactivate()
		m.deadline.Cancel()
		m.stopFetch()
		m.stopLoad()
		m.cancel()
		m.log.Debug("game: machine stopped", "state", m.state)
	})
}

func (m *Machine) handle(ev event) {
	switch e := ev.(type) {
	case startEvent:
		m.onStart()
	case fetchEvent:
		m.onFetch(e)
	case loadEvent:
		m.onLoad(e)
	case scoreEvent:
		m.onScore(e.score)
	case deadlineEvent:
		m.onDeadline(e.token)
	}
}

func (m *Machine) onStart() {
	switch {
	case m.state == Initializing:
		m.transition(Fetching)
	case m.state == Fetching && !m.fetching:
		m.log.Info("game: retrying fetch")
		m.beginFetch()
	default:
		m.log.Debug("game: start ignored", "state", m.state, "fetching", m.fetching)
	}
}

func (m *Machine) onFetch(e fetchEvent) {
	if m.state != Fetching {
		m.log.Debug("game: fetch result ignored", "state", m.state)
		return
	}
	if e.token != 0 && e.token != m.fetchToken {
		m.log.Debug("game: stale fetch result dropped", "token", e.token)
		return
	}
	m.stopFetch()

	if e.err != nil {
		m.fail(WrapError(CodeFetchFailure, MsgFetchFailure, e.err))
		return
	}
	if len(e.items) == 0 {
		m.fail(NewError(CodeFetchFailure, MsgFetchFailure))
		return
	}
	m.items = append([]content.Item(nil), e.items...)
	m.log.Info("game: content fetched", "category", m.category, "items", len(m.items))
	m.transition(Loading)
}

func (m *Machine) onLoad(e loadEvent) {
	if m.state != Loading || e.token != m.loadToken {
		m.log.Debug("game: stale load result dropped", "state", m.state, "token", e.token)
		return
	}
	m.stopLoad()

	if e.err != nil {
		m.fail(WrapError(CodeLoadFailure, MsgLoadFailure, e.err))
		return
	}
	m.transition(Running)
}

func (m *Machine) onScore(score float64) {
	if m.state != Running {
		m.log.Debug("game: score ignored", "state", m.state, "score", score)
		return
	}
	m.score = score
	m.dirty = true
	if score > m.cfg.LossThreshold {
		m.log.Info("game: laugh detected", "round", m.clock.Round, "score", score)
		m.transition(Finished)
	}
}

func (m *Machine) onDeadline(token uint64) {
	if m.state != Running {
		m.log.Debug("game: deadline ignored", "state", m.state)
		return
	}
	if token != 0 && token != m.deadlineToken {
		m.log.Debug("game: stale deadline dropped", "token", token)
		return
	}
	m.transition(Loading)
}

func (m *Machine) transition(to GameState) {
	from := m.state
	if !canTransition(from, to) {
		m.log.Error("game: illegal transition", "from", from, "to", to)
		return
	}
	m.state = to
	m.dirty = true
	m.log.Info("game: state changed", "from", from, "to", to)
	m.onStateChanged(from, to)
}

// onStateChanged runs the side effects of one transition, exactly once.
func (m *Machine) onStateChanged(from, to GameState) {
	if from == Running {
		m.sampler.Deactivate()
		m.deadline.Cancel()
		m.deadlineToken = 0
		m.clock.Stop()
	}

	switch to {
	case Fetching:
		m.beginFetch()
	case Loading:
		m.beginLoad()
	case Running:
		m.enterRunning()
	case Finished:
		m.status = MsgResult
		m.failure = ""
	}
}

func (m *Machine) beginFetch() {
	m.stopFetch()
	m.category = pickCategory(m.rng, m.cfg.Categories)
	m.status = ""
	m.failure = ""
	m.fetching = true
	m.fetchToken++
	token := m.fetchToken
	m.dirty = true

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.FetchTimeout)
	m.fetchCancel = cancel
	category := m.category
	m.log.Info("game: fetching content", "category", category)
	go func() {
		defer cancel()
		items, err := m.fetcher.Search(ctx, category)
		m.inbox.Post(fetchEvent{token: token, items: items, err: err})
	}()
}

// stopFetch abandons any in-flight fetch; its result will be stale.
func (m *Machine) stopFetch() {
	if m.fetchCancel != nil {
		m.fetchCancel()
		m.fetchCancel = nil
	}
	if m.fetching {
		m.fetching = false
		m.fetchToken++
	}
}

func (m *Machine) beginLoad() {
	m.stopLoad()
	m.current = m.items[m.rng.Intn(len(m.items))]
	m.status = ""
	m.failure = ""
	m.loadToken++
	token := m.loadToken

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.LoadTimeout)
	m.loadCancel = cancel
	item := m.current
	m.log.Info("game: loading item", "id", item.ID)
	go func() {
		defer cancel()
		err := m.loader.Load(ctx, item)
		m.inbox.Post(loadEvent{token: token, err: err})
	}()
}

func (m *Machine) stopLoad() {
	if m.loadCancel != nil {
		m.loadCancel()
		m.loadCancel = nil
	}
}

func (m *Machine) enterRunning() {
	m.scores.Reset()
	m.score = 0
	if err := m.sampler.Activate(); err != nil {
		m.fail(WrapError(CodeSensorUnavailable, MsgSensorUnavailable, err))
		m.transition(Ended)
		return
	}
	m.clock.Start(m.now())
	m.roundID = uuid.NewString()
	m.deadlineToken = m.deadline.Arm(m.cfg.RoundDuration, func(token uint64) {
		m.DeadlineElapsed(token)
	})
	m.log.Info("game: round started", "round", m.clock.Round, "round_id", m.roundID, "item", m.current.ID)
}

func (m *Machine) fail(err *Error) {
	m.status = err.Message
	m.failure = err.Code
	m.dirty = true
	m.log.Warn("game: failure", "code", err.Code, "state", m.state, "error", err)
}

func (m *Machine) publish() {
	m.dirty = false
	snap := m.buildSnapshot()
	m.snapMu.Lock()
	m.snap = snap
	m.snapMu.Unlock()
	if m.onChange != nil {
		m.onChange(snap)
	}
}
