package provider

import (
	"context"
	"time"

	"github.com/mcolombo/ensemble/internal/reliability"
)

// Classifier decides whether a primary failure earns the single permitted
// retry. Injected so policy stays configuration, not code.
type Classifier func(err error) bool

// state names the failover machine's positions for one request. Nothing is
// carried across requests; this is not a circuit breaker.
type state int

const (
	stateTryPrimary state = iota
	stateTrySecondary
	stateExhausted
)

// Result describes a successful generation attempt.
type Result struct {
	Text     string
	Provider string
	Latency  time.Duration
}

// FailoverClient drives two interchangeable generation backends through an
// explicit per-request state machine:
//
//	TryPrimary -> Done
//	TryPrimary -> TrySecondary -> Done
//	TrySecondary -> Exhausted
//
// Each attempt is bounded by callTimeout. The primary is retried at most
// once, and only when its first failure classifies as transient.
type FailoverClient struct {
	primary     Generator
	secondary   Generator
	callTimeout time.Duration
	retryDelay  time.Duration
	isTransient Classifier
	onFailure   func(provider string, err error)
}

func NewFailoverClient(primary, secondary Generator, callTimeout time.Duration, optFns ...func(*FailoverClient)) *FailoverClient {
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	c := &FailoverClient{
		primary:     primary,
		secondary:   secondary,
		callTimeout: callTimeout,
		retryDelay:  100 * time.Millisecond,
		isTransient: IsTransient,
	}
	for _, fn := range optFns {
		fn(c)
	}
	return c
}

// WithClassifier overrides the transient-failure predicate.
func WithClassifier(fn Classifier) func(*FailoverClient) {
	return func(c *FailoverClient) {
		if fn != nil {
			c.isTransient = fn
		}
	}
}

// WithRetryDelay overrides the pause before the single primary retry.
func WithRetryDelay(d time.Duration) func(*FailoverClient) {
	return func(c *FailoverClient) { c.retryDelay = d }
}

// WithFailureObserver registers a callback invoked once per failed attempt
// with the provider name and the classified error, e.g. to feed error
// counters.
func WithFailureObserver(fn func(provider string, err error)) func(*FailoverClient) {
	return func(c *FailoverClient) { c.onFailure = fn }
}

// Generate runs the failover machine for one request. On exhaustion it
// returns an ExhaustedError carrying the combined elapsed time of all
// attempts; a parent-context deadline surfaces as ctx.Err() so callers can
// tell a pipeline timeout apart from provider exhaustion.
func (c *FailoverClient) Generate(ctx context.Context, prompt string, maxTokens int) (Result, error) {
	var (
		primaryErr   error
		secondaryErr error
		total        time.Duration
		retried      bool
	)

	st := stateTryPrimary
	for {
		switch st {
		case stateTryPrimary:
			text, elapsed, err := c.attempt(ctx, c.primary, prompt, maxTokens)
			total += elapsed
			if err == nil {
				return Result{Text: text, Provider: c.primary.Name(), Latency: elapsed}, nil
			}
			c.observeFailure(c.primary.Name(), err)
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			primaryErr = err
			if !retried && c.isTransient(err) {
				retried = true
				if err := sleepCtx(ctx, reliability.ExponentialBackoff(0, c.retryDelay, time.Second)); err != nil {
					return Result{}, err
				}
				continue
			}
			st = stateTrySecondary
		case stateTrySecondary:
			text, elapsed, err := c.attempt(ctx, c.secondary, prompt, maxTokens)
			total += elapsed
			if err == nil {
				return Result{Text: text, Provider: c.secondary.Name(), Latency: elapsed}, nil
			}
			c.observeFailure(c.secondary.Name(), err)
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			secondaryErr = err
			st = stateExhausted
		case stateExhausted:
			return Result{}, &ExhaustedError{
				PrimaryErr:   primaryErr,
				SecondaryErr: secondaryErr,
				Elapsed:      total,
			}
		}
	}
}

func (c *FailoverClient) observeFailure(provider string, err error) {
	if c.onFailure != nil {
		c.onFailure(provider, err)
	}
}

func (c *FailoverClient) attempt(ctx context.Context, g Generator, prompt string, maxTokens int) (string, time.Duration, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := g.Generate(attemptCtx, prompt, maxTokens)
	return text, time.Since(start), err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
