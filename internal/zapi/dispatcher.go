package zapi

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/muurk/multy/internal/logging"
)

const (
	// DefaultConcurrency is the number of session-bound calls admitted at once
	DefaultConcurrency = 1

	// DefaultMaxAttempts is the total number of attempts for a retryable call
	DefaultMaxAttempts = 3

	// DefaultCallTimeout bounds a single attempt
	DefaultCallTimeout = 10 * time.Second

	// DefaultInitialBackoff is the first delay between attempts
	DefaultInitialBackoff = 500 * time.Millisecond

	// DefaultMaxBackoff caps the delay between attempts
	DefaultMaxBackoff = 5 * time.Second
)

// ErrDispatcherClosed is returned by Call after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// DispatcherConfig tunes retries and admission.
type DispatcherConfig struct {
	Concurrency    int64
	MaxAttempts    int
	CallTimeout    time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Concurrency:    DefaultConcurrency,
		MaxAttempts:    DefaultMaxAttempts,
		CallTimeout:    DefaultCallTimeout,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	def := DefaultDispatcherConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	return c
}

// DispatcherStats counts dispatcher activity since creation.
type DispatcherStats struct {
	Calls     uint64
	Attempts  uint64
	Retries   uint64
	Reauths   uint64
	Failures  uint64
	Protocols uint64
}

// Dispatcher is the single entry point for logical ZAPI calls.
type Dispatcher struct {
	sender  Sender
	session *Session
	config  DispatcherConfig
	gate    *semaphore.Weighted
	closed  atomic.Bool

	calls     atomic.Uint64
	attempts  atomic.Uint64
	retries   atomic.Uint64
	reauths   atomic.Uint64
	failures  atomic.Uint64
	protocols atomic.Uint64
}

// NewDispatcher creates a dispatcher sending through sender with session.
func NewDispatcher(sender Sender, session *Session, config DispatcherConfig) *Dispatcher {
	config = config.withDefaults()
	return &Dispatcher{
		sender:  sender,
		session: session,
		config:  config,
		gate:    semaphore.NewWeighted(config.Concurrency),
	}
}

// Session returns the session the dispatcher authenticates with.
func (d *Dispatcher) Session() *Session {
	return d.session
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Calls:     d.calls.Load(),
		Attempts:  d.attempts.Load(),
		Retries:   d.retries.Load(),
		Reauths:   d.reauths.Load(),
		Failures:  d.failures.Load(),
		Protocols: d.protocols.Load(),
	}
}

// Call performs one logical call.
//
// Network errors are retried up to MaxAttempts with exponential backoff. An
// auth error triggers one re-login and one retry; a second auth failure is
// returned. Device and protocol errors are returned immediately. The gate is
// held per attempt, never across a backoff sleep.
func (d *Dispatcher) Call(ctx context.Context, spec CallSpec) (*Reply, error) {
	if d.closed.Load() {
		return nil, ErrDispatcherClosed
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	d.calls.Add(1)

	var (
		reply    *Reply
		reauthed bool
		attempt  int
	)

	op := func() error {
		attempt++
		r, gen, err := d.attempt(ctx, spec, attempt)
		if err == nil {
			reply = r
			return nil
		}

		if IsAuthError(err) && !errors.Is(err, ErrLoginFailed) {
			if reauthed {
				return backoff.Permanent(err)
			}
			reauthed = true
			d.reauths.Add(1)
			logging.Debug("Session rejected, re-authenticating",
				zap.String("call", spec.String()),
				zap.Error(err),
			)
			if d.closed.Load() {
				return backoff.Permanent(ErrDispatcherClosed)
			}
			if rerr := d.refresh(ctx, gen); rerr != nil {
				return backoff.Permanent(rerr)
			}
			attempt++
			r, _, err = d.attempt(ctx, spec, attempt)
			if err == nil {
				reply = r
				return nil
			}
			if IsAuthError(err) {
				return backoff.Permanent(err)
			}
		}

		if IsProtocolError(err) {
			d.protocols.Add(1)
			logging.Warn("Unexpected reply shape",
				zap.String("call", spec.String()),
				zap.Error(err),
			)
		}

		if IsRetryable(err) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		d.retries.Add(1)
		logging.Debug("Retrying ZAPI call",
			zap.String("call", spec.String()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(d.newBackOff(), ctx), notify); err != nil {
		d.failures.Add(1)
		return nil, err
	}
	return reply, nil
}

// attempt sends the call once under the gate and returns the token
// generation it used.
func (d *Dispatcher) attempt(ctx context.Context, spec CallSpec, n int) (*Reply, uint64, error) {
	if err := d.gate.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer d.gate.Release(1)

	if d.closed.Load() {
		return nil, 0, ErrDispatcherClosed
	}
	d.attempts.Add(1)

	callCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()

	var (
		reply *Reply
		gen   uint64
		id    int64
	)
	start := time.Now()
	err := d.session.Use(callCtx, func(tok Token) error {
		gen = tok.Generation
		id = d.session.NextMessageID()
		body, err := Encode(spec, id)
		if err != nil {
			return err
		}
		resp, err := d.sender.Send(callCtx, body, &Auth{Token: tok.Value, SysAuth: tok.SysAuth})
		if err != nil {
			return err
		}
		reply, err = Decode(resp.Body, spec)
		if zerr, ok := asError(err); ok && zerr.Kind == KindProtocol && zerr.StatusCode == 0 {
			zerr.StatusCode = resp.StatusCode
		}
		return err
	})

	// A per-attempt deadline surfaces as a timeout even when the transport
	// reported a plain context error
	if err != nil && !IsNetworkError(err) && !errors.Is(err, ErrLoginFailed) &&
		errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = ClassifyNetworkError(context.DeadlineExceeded, "")
	}

	logging.LogCall(spec.String(), id, n, time.Since(start), err)
	return reply, gen, err
}

// refresh re-authenticates under the per-call timeout so a router that
// stalls during login cannot hold the session lock indefinitely.
func (d *Dispatcher) refresh(ctx context.Context, gen uint64) error {
	loginCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
	defer cancel()
	return d.session.Refresh(loginCtx, gen)
}

func (d *Dispatcher) newBackOff() backoff.BackOff {
	if d.config.MaxAttempts <= 1 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.config.InitialBackoff
	b.MaxInterval = d.config.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	// Attempts are bounded by WithMaxRetries, not elapsed time
	b.MaxElapsedTime = 0
	// WithMaxRetries counts retries, so one less than the attempt budget
	return backoff.WithMaxRetries(b, uint64(d.config.MaxAttempts-1))
}

// Close waits for in-flight calls to finish, then releases the session.
// Calls made after Close fail with ErrDispatcherClosed.
func (d *Dispatcher) Close(ctx context.Context) error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := d.gate.Acquire(ctx, d.config.Concurrency); err != nil {
		d.session.Release()
		return err
	}
	defer d.gate.Release(d.config.Concurrency)
	d.session.Release()
	return nil
}
