package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/joseph-ayodele/quotation-intake/internal/common"
)

// Class is how a failed call is treated.
type Class int

const (
	Fatal Class = iota
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// Outcome tags the result of Do.
type Outcome int

const (
	Succeeded Outcome = iota
	Exhausted
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "success"
	case Exhausted:
		return "exhausted"
	default:
		return "fatal"
	}
}

// Policy wraps a blocking call with exponential backoff plus jitter. The wait
// before attempt i+1 is BackoffBase^i seconds plus Jitter() seconds, and there
// is no wait after the last attempt.
type Policy struct {
	Name        string
	MaxAttempts int
	BackoffBase float64
	Classify    func(error) Class

	// Sleep and Jitter default to a context-aware timer and rand.Float64.
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
	Logger *slog.Logger
}

// Result is the tagged outcome of Do. Err is the last error for Exhausted
// and Failed.
type Result[T any] struct {
	Value    T
	Outcome  Outcome
	Err      error
	Attempts int
}

func (r Result[T]) OK() bool { return r.Outcome == Succeeded }

// Backoff returns the wait after the given 0-indexed attempt, jitter excluded.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		base = 2
	}
	return time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
}

// Do runs fn until it succeeds, fails fatally, or MaxAttempts is reached.
// A cancelled context while waiting ends the loop as Failed.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) Result[T] {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = Classify
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	logger := common.LoggerFromContext(ctx, p.Logger)

	var res Result[T]
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res.Attempts = attempt + 1
		v, err := fn(ctx)
		if err == nil {
			res.Value = v
			res.Outcome = Succeeded
			res.Err = nil
			return res
		}
		res.Err = err

		if classify(err) == Fatal {
			logger.Warn("retry.fatal", "call", p.Name, "attempt", res.Attempts, "error", err)
			res.Outcome = Failed
			return res
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := p.Backoff(attempt) + time.Duration(jitter()*float64(time.Second))
		logger.Info("retry.backoff",
			"call", p.Name,
			"attempt", res.Attempts,
			"max_attempts", maxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if serr := sleep(ctx, wait); serr != nil {
			res.Outcome = Failed
			res.Err = serr
			return res
		}
	}

	logger.Warn("retry.exhausted", "call", p.Name, "attempts", res.Attempts, "error", res.Err)
	res.Outcome = Exhausted
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
