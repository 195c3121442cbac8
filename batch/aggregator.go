// Package batch runs the recurring full aggregation pass that populates the
// system summary and every per-user summary in the cache.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-debt-summary/aggregate"
	"github.com/goliatone/go-debt-summary/cache"
	"github.com/goliatone/go-debt-summary/debt"
	"github.com/goliatone/go-debt-summary/internal/metrics"
	"github.com/goliatone/go-debt-summary/store"
	"github.com/goliatone/go-debt-summary/summarycache"
)

var (
	// ErrAlreadyRunning is returned by Run when the loop is already active.
	ErrAlreadyRunning = errors.New("batch: aggregator already running")

	// ErrPassInProgress is returned by RunOnce while another pass is executing.
	ErrPassInProgress = errors.New("batch: pass already in progress")

	errInvalidated = errors.New("batch: summaries invalidated during pass")
)

// State is the lifecycle state of an Aggregator.
type State int32

const (
	// StateIdle means no pass is executing; the loop, if started, is waiting.
	StateIdle State = iota
	// StateRunning means a pass is executing.
	StateRunning
	// StateStopped means the loop has exited.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config controls the pass cadence and the write phase.
type Config struct {
	// Interval is the sleep between the end of one pass and the start of the next.
	Interval time.Duration
	// RunOnStart runs the first pass before the first sleep.
	RunOnStart bool
	// FanOutTimeout bounds the write phase, which ignores caller cancellation
	// once started.
	FanOutTimeout time.Duration
	// FanOutConcurrency limits concurrent per-user writes.
	FanOutConcurrency int
	// MaxAttempts is how often a pass restarts after an invalidation raced it
	// before it gives up until the next interval.
	MaxAttempts int
	TTLs        summarycache.TTLs
}

// DefaultConfig returns a 30 minute interval with a pass at start-up.
func DefaultConfig() Config {
	return Config{
		Interval:          30 * time.Minute,
		RunOnStart:        true,
		FanOutTimeout:     2 * time.Minute,
		FanOutConcurrency: 8,
		MaxAttempts:       3,
		TTLs:              summarycache.DefaultTTLs(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return fmt.Errorf("batch: interval must be positive, got %s", c.Interval)
	case c.FanOutTimeout <= 0:
		return fmt.Errorf("batch: fan-out timeout must be positive, got %s", c.FanOutTimeout)
	case c.FanOutConcurrency < 1:
		return fmt.Errorf("batch: fan-out concurrency must be at least 1, got %d", c.FanOutConcurrency)
	case c.MaxAttempts < 1:
		return fmt.Errorf("batch: max attempts must be at least 1, got %d", c.MaxAttempts)
	case c.TTLs.System <= 0 || c.TTLs.User <= 0:
		return fmt.Errorf("batch: system and user ttl must be positive")
	}
	return nil
}

// PassResult describes one pass.
type PassResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// ComputedAt stamps every summary written by the pass.
	ComputedAt        time.Time
	Users             int
	Debts             int
	UsersWritten      int
	UserWriteFailures int
	Attempts          int
	// Outcome is one of metrics.PassCompleted, metrics.PassFailed or metrics.PassSkipped.
	Outcome string
	Err     error
}

// Duration is the wall time of the pass.
func (r PassResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the clock driving the interval timer and the pass timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithKeySerializer overrides the default key layout.
func WithKeySerializer(k cache.KeySerializer) Option {
	return func(a *Aggregator) { a.keys = k }
}

// WithGeneration shares the invalidation generation with the read path.
func WithGeneration(g *summarycache.Generation) Option {
	return func(a *Aggregator) { a.generation = g }
}

// Aggregator periodically summarizes every debt and refreshes both cache tiers.
type Aggregator struct {
	cfg        Config
	store      store.Reader
	layer      *cache.Layer
	clock      clockwork.Clock
	logger     zerolog.Logger
	metrics    *metrics.Collector
	keys       cache.KeySerializer
	generation *summarycache.Generation

	state   atomic.Int32
	looping atomic.Bool
	passMu  sync.Mutex

	lastMu sync.RWMutex
	last   PassResult
}

// New builds an aggregator reading from r and writing through layer.
func New(r store.Reader, layer *cache.Layer, cfg Config, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:    cfg,
		store:  r,
		layer:  layer,
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
		keys:   cache.NewDefaultKeySerializer(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.generation == nil {
		a.generation = &summarycache.Generation{}
	}
	if a.cfg.FanOutConcurrency < 1 {
		a.cfg.FanOutConcurrency = 1
	}
	if a.cfg.MaxAttempts < 1 {
		a.cfg.MaxAttempts = 1
	}
	return a
}

// State returns the current lifecycle state.
func (a *Aggregator) State() State {
	return State(a.state.Load())
}

// LastPass returns the result of the most recent pass. ok is false before the first pass.
func (a *Aggregator) LastPass() (PassResult, bool) {
	a.lastMu.RLock()
	defer a.lastMu.RUnlock()
	return a.last, a.last.Attempts > 0
}

// Run executes passes separated by the configured interval until ctx is
// cancelled, then returns ctx.Err(). Pass failures are logged and never end
// the loop.
func (a *Aggregator) Run(ctx context.Context) error {
	if !a.looping.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	a.state.Store(int32(StateIdle))
	defer a.looping.Store(false)
	defer a.state.Store(int32(StateStopped))

	a.logger.Info().
		Dur("interval", a.cfg.Interval).
		Bool("run_on_start", a.cfg.RunOnStart).
		Msg("batch aggregator starting")

	if a.cfg.RunOnStart {
		a.runScheduled(ctx)
	}

	for {
		timer := a.clock.NewTimer(a.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info().Msg("batch aggregator stopping")
			return ctx.Err()
		case <-timer.Chan():
		}
		a.runScheduled(ctx)
	}
}

func (a *Aggregator) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.RunOnce(ctx); errors.Is(err, ErrPassInProgress) {
		a.logger.Debug().Msg("scheduled pass skipped, another pass is running")
	}
}

// RunOnce executes a single pass now. The returned error is the pass error,
// also recorded in PassResult.Err; it is nil for a completed pass.
func (a *Aggregator) RunOnce(ctx context.Context) (PassResult, error) {
	if !a.passMu.TryLock() {
		return PassResult{}, ErrPassInProgress
	}
	defer a.passMu.Unlock()

	a.state.CompareAndSwap(int32(StateIdle), int32(StateRunning))
	defer a.state.CompareAndSwap(int32(StateRunning), int32(StateIdle))

	res := a.pass(ctx)

	a.lastMu.Lock()
	a.last = res
	a.lastMu.Unlock()

	a.metrics.BatchPass(res.Outcome, res.Duration(), res.Users)
	a.report(res)
	return res, res.Err
}

func (a *Aggregator) pass(ctx context.Context) PassResult {
	res := PassResult{StartedAt: a.clock.Now()}
	a.logger.Info().Time("started_at", res.StartedAt).Msg("batch pass starting")

	var err error
	for res.Attempts < a.cfg.MaxAttempts {
		res.Attempts++
		err = a.attempt(ctx, &res)
		if !errors.Is(err, errInvalidated) {
			break
		}
		a.logger.Debug().Int("attempt", res.Attempts).Msg("debts changed during pass, restarting")
	}

	res.FinishedAt = a.clock.Now()
	res.Err = err
	switch {
	case err == nil:
		res.Outcome = metrics.PassCompleted
	case errors.Is(err, errInvalidated), ctx.Err() != nil:
		res.Outcome = metrics.PassSkipped
	default:
		res.Outcome = metrics.PassFailed
	}
	return res
}

// attempt loads one snapshot and writes its summaries. Cancellation is honoured
// up to the system write; from there on the write phase runs to completion
// within FanOutTimeout.
func (a *Aggregator) attempt(ctx context.Context, res *PassResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gen := a.generation.Current()
	snap, err := store.LoadSnapshot(ctx, a.store)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	computedAt := a.clock.Now()
	sum := aggregate.Summarize(snap.Debts, snap.Users, computedAt)
	res.ComputedAt = computedAt
	res.Users = len(sum.Users)
	res.Debts = len(snap.Debts)
	res.UsersWritten = 0
	res.UserWriteFailures = 0

	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.generation.Unchanged(gen) {
		return errInvalidated
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.FanOutTimeout)
	defer cancel()

	systemKey := cache.SystemSummaryKey(a.keys)
	if err := cache.Save(wctx, a.layer, systemKey, sum, a.cfg.TTLs.System); err != nil {
		a.soft(err)
		return fmt.Errorf("write system summary: %w", err)
	}
	if !a.generation.Unchanged(gen) {
		a.evict(wctx, systemKey)
		return errInvalidated
	}

	written, failed, err := a.fanOut(wctx, gen, sum.Users)
	res.UsersWritten = written
	res.UserWriteFailures = failed
	return err
}

// fanOut writes one entry per user. When the generation moves it stops and
// evicts the system entry and everything it wrote.
func (a *Aggregator) fanOut(ctx context.Context, gen uint64, users []debt.UserDebtSummary) (int, int, error) {
	wrote := make([]bool, len(users))
	var failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(a.cfg.FanOutConcurrency)
	for i := range users {
		g.Go(func() error {
			if !a.generation.Unchanged(gen) {
				return errInvalidated
			}
			key := cache.UserSummaryKey(a.keys, users[i].UserID)
			if err := cache.Save(ctx, a.layer, key, users[i], a.cfg.TTLs.User); err != nil {
				a.soft(err)
				failed.Add(1)
				// an older entry must not outlive this pass
				a.evict(ctx, key)
				return nil
			}
			wrote[i] = true
			return nil
		})
	}
	err := g.Wait()

	written := 0
	for _, ok := range wrote {
		if ok {
			written++
		}
	}

	if err == nil && a.generation.Unchanged(gen) {
		return written, int(failed.Load()), nil
	}

	a.evict(ctx, cache.SystemSummaryKey(a.keys))
	for i, ok := range wrote {
		if ok {
			a.evict(ctx, cache.UserSummaryKey(a.keys, users[i].UserID))
		}
	}
	return 0, int(failed.Load()), errInvalidated
}

func (a *Aggregator) evict(ctx context.Context, key string) {
	if err := a.layer.Evict(ctx, key); err != nil {
		a.soft(err)
	}
}

func (a *Aggregator) soft(err error) {
	var se *cache.SoftError
	if errors.As(err, &se) {
		a.metrics.SoftFailure(se.Op)
		a.logger.Warn().Err(se.Err).Str("op", se.Op).Str("key", se.Key).Msg("batch cache write failed")
		return
	}
	a.logger.Warn().Err(err).Msg("batch cache write failed")
}

func (a *Aggregator) report(res PassResult) {
	switch res.Outcome {
	case metrics.PassCompleted:
		a.logger.Info().
			Int("users", res.Users).
			Int("debts", res.Debts).
			Int("written", res.UsersWritten).
			Int("write_failures", res.UserWriteFailures).
			Int("attempts", res.Attempts).
			Dur("duration", res.Duration()).
			Msg("batch pass completed")
	case metrics.PassSkipped:
		a.logger.Info().Err(res.Err).Int("attempts", res.Attempts).Msg("batch pass skipped")
	default:
		a.logger.Error().Err(res.Err).Int("attempts", res.Attempts).Msg("batch pass failed")
	}
}
