package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/state"
	"github.com/muurk/multy/internal/zapi"
)

const (
	// DefaultInterval is the time between tick starts
	DefaultInterval = 30 * time.Second

	// DefaultUnavailableAfter is the number of consecutive failed reads
	// before a resource is reported unavailable
	DefaultUnavailableAfter = 3

	// DefaultMaxBackoff caps the extra delay added after fully failed ticks
	DefaultMaxBackoff = 5 * time.Minute
)

// Caller issues one logical ZAPI call. *zapi.Dispatcher implements it.
type Caller interface {
	Call(ctx context.Context, spec zapi.CallSpec) (*zapi.Reply, error)
}

// Config tunes a Scheduler.
type Config struct {
	Interval         time.Duration
	UnavailableAfter int
	MaxBackoff       time.Duration
	Resources        []Resource
}

// DefaultConfig returns the default configuration polling every default resource.
func DefaultConfig() Config {
	return Config{
		Interval:         DefaultInterval,
		UnavailableAfter: DefaultUnavailableAfter,
		MaxBackoff:       DefaultMaxBackoff,
		Resources:        DefaultResources(),
	}
}

// Stats counts scheduler activity.
type Stats struct {
	Ticks        uint64
	SkippedTicks uint64
	Failures     uint64
	Refreshes    uint64
	LastTick     time.Time
	LastDuration time.Duration
}

// TickResult summarizes one pass over a set of resources.
type TickResult struct {
	Polled  []string
	Failed  map[string]error
	Changed []string
}

// AllFailed reports whether every attempted read failed.
func (r TickResult) AllFailed() bool {
	return len(r.Failed) > 0 && len(r.Polled) == 0
}

// Err joins the individual read failures.
func (r TickResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for name, err := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...)
}

// Scheduler reads resources on a fixed cadence and feeds the state cache.
//
// Ticks never overlap: a tick runs to completion before the next is timed,
// and firings missed while a tick overran are skipped, not queued. Refresh
// shares the same lock, so caller-triggered reads interleave between ticks.
type Scheduler struct {
	caller Caller
	cache  *state.Cache
	store  *state.Store
	config Config

	tickMu sync.Mutex

	statsMu  sync.Mutex
	stats    Stats
	failures map[string]int

	now func() time.Time
}

// NewScheduler creates a scheduler feeding cache with reads through caller.
func NewScheduler(caller Caller, cache *state.Cache, config Config) *Scheduler {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.UnavailableAfter <= 0 {
		config.UnavailableAfter = def.UnavailableAfter
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if len(config.Resources) == 0 {
		config.Resources = def.Resources
	}
	return &Scheduler{
		caller:   caller,
		cache:    cache,
		config:   config,
		failures: make(map[string]int),
		now:      time.Now,
	}
}

// SetStore enables snapshot persistence. Run preloads the cache from it and
// every tick that changes state saves it.
func (s *Scheduler) SetStore(store *state.Store) {
	s.store = store
}

// Cache returns the cache the scheduler feeds.
func (s *Scheduler) Cache() *state.Cache {
	return s.cache
}

// Stats returns a copy of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Stale returns the consecutive failed-tick count of every resource whose
// last scheduled read failed.
func (s *Scheduler) Stale() map[string]int {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	out := make(map[string]int, len(s.failures))
	for name, n := range s.failures {
		out[name] = n
	}
	return out
}

// Run polls until ctx is done. The first tick starts immediately. When ctx
// is cancelled an in-flight read finishes or times out on its own; no
// further reads start.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.store != nil {
		snaps, err := s.store.Load()
		if err != nil {
			logging.Warn("Ignoring unreadable state file",
				zap.String("path", s.store.Path()),
				zap.Error(err),
			)
		} else {
			s.cache.Preload(snaps)
		}
	}

	interval := s.config.Interval
	failBackoff := backoff.NewExponentialBackOff()
	failBackoff.InitialInterval = interval
	failBackoff.MaxInterval = s.config.MaxBackoff
	failBackoff.MaxElapsedTime = 0
	failBackoff.Reset()

	logging.Info("Polling started",
		zap.Duration("interval", interval),
		zap.Int("resources", len(s.config.Resources)),
	)

	next := s.now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Polling stopped")
			return nil
		case <-timer.C:
		}

		scheduled := next
		result := s.Tick(ctx)

		var extra time.Duration
		if result.AllFailed() {
			extra = failBackoff.NextBackOff()
			logging.Warn("All reads failed, backing off",
				zap.Duration("extra_delay", extra),
				zap.Error(result.Err()),
			)
		} else {
			failBackoff.Reset()
		}

		now := s.now()
		var skipped uint64
		next = scheduled.Add(interval)
		for !next.After(now) {
			next = next.Add(interval)
			skipped++
		}
		if skipped > 0 {
			s.statsMu.Lock()
			s.stats.SkippedTicks += skipped
			s.statsMu.Unlock()
			logging.Debug("Tick overran, skipping firings", zap.Uint64("skipped", skipped))
		}
		next = next.Add(extra)
		timer.Reset(next.Sub(now))
	}
}

// Tick reads every configured resource once.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	start := s.now()
	result := s.pollLocked(ctx, s.config.Resources, true)

	s.statsMu.Lock()
	s.stats.Ticks++
	s.stats.Failures += uint64(len(result.Failed))
	s.stats.LastTick = start
	s.stats.LastDuration = s.now().Sub(start)
	s.statsMu.Unlock()

	return result
}

// Refresh reads the named resources immediately, serialized with ticks.
// With no names it refreshes every configured resource.
func (s *Scheduler) Refresh(ctx context.Context, names ...string) error {
	resources := s.config.Resources
	if len(names) > 0 {
		resources = make([]Resource, 0, len(names))
		for _, name := range names {
			r, ok := s.lookup(name)
			if !ok {
				return fmt.Errorf("unknown resource %q", name)
			}
			resources = append(resources, r)
		}
	}

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	result := s.pollLocked(ctx, resources, false)

	s.statsMu.Lock()
	s.stats.Refreshes++
	s.stats.Failures += uint64(len(result.Failed))
	s.statsMu.Unlock()

	return result.Err()
}

func (s *Scheduler) lookup(name string) (Resource, bool) {
	for _, r := range s.config.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return LookupResource(name)
}

// pollLocked reads resources in order. Only scheduled ticks count toward
// staleness. Caller holds s.tickMu.
func (s *Scheduler) pollLocked(ctx context.Context, resources []Resource, scheduled bool) TickResult {
	result := TickResult{Failed: map[string]error{}}

	// Reads already started are not cut short by shutdown
	callCtx := context.WithoutCancel(ctx)

	for _, r := range resources {
		if ctx.Err() != nil {
			break
		}
		changed, err := s.pollOne(callCtx, r, scheduled)
		if err != nil {
			result.Failed[r.Name] = err
			continue
		}
		result.Polled = append(result.Polled, r.Name)
		if changed {
			result.Changed = append(result.Changed, r.Name)
		}
	}

	if s.store != nil && len(result.Changed) > 0 {
		if err := s.store.Save(s.cache.Snapshots()); err != nil {
			logging.Warn("Failed to save state file", zap.Error(err))
		}
	}
	return result
}

func (s *Scheduler) pollOne(ctx context.Context, r Resource, scheduled bool) (bool, error) {
	reply, err := s.caller.Call(ctx, r.Call)
	var snap *state.Snapshot
	if err == nil {
		snap, err = state.FromTree(r.Name, reply.Output(), r.Shape, s.now())
		if err != nil {
			err = zapi.NewProtocolError(err.Error(), nil)
		}
	}

	if err != nil && !scheduled {
		logging.Debug("Resource refresh failed",
			zap.String("resource", r.Name),
			zap.Error(err),
		)
		return false, err
	}
	if err != nil {
		s.statsMu.Lock()
		s.failures[r.Name]++
		n := s.failures[r.Name]
		s.statsMu.Unlock()
		logging.Debug("Resource read failed",
			zap.String("resource", r.Name),
			zap.Int("consecutive", n),
			zap.Error(err),
		)
		if n >= s.config.UnavailableAfter {
			s.cache.MarkUnavailable(r.Name, err)
		}
		return false, err
	}

	s.statsMu.Lock()
	delete(s.failures, r.Name)
	s.statsMu.Unlock()
	s.cache.MarkAvailable(r.Name)
	_, changed := s.cache.Update(snap)
	return changed, nil
}
