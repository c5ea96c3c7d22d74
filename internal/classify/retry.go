package classify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencoreai/turnengine/internal/logging"
	"github.com/opencoreai/turnengine/internal/transport"
)

// MaxRetries is the number of retries permitted after the initial attempt
// (spec §4.C): five calls total.
const MaxRetries = 4

// fixedSchedule hands out the spec-mandated [2,4,8,16]s delays in order,
// implementing backoff.BackOff so the retrier can drive it with the same
// NextBackOff/Reset protocol the rest of the ecosystem uses.
type fixedSchedule struct {
	delays  []time.Duration
	attempt int
}

func newFixedSchedule() *fixedSchedule {
	return &fixedSchedule{delays: []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}}
}

func (f *fixedSchedule) NextBackOff() time.Duration {
	if f.attempt >= len(f.delays) {
		return backoff.Stop
	}
	d := f.delays[f.attempt]
	f.attempt++
	return d
}

func (f *fixedSchedule) Reset() { f.attempt = 0 }

// Call is one attempt at the underlying streaming request.
type Call func(ctx context.Context) (*transport.Result, error)

// Retrier drives Call through the spec §4.C retry schedule: up to
// MaxRetries retries after the initial attempt, short-circuiting on a
// Permanent classification, honoring an HTTPError's RetryAfter override
// (clamped to [0,60] seconds) in place of the scheduled delay.
type Retrier struct{}

func NewRetrier() *Retrier { return &Retrier{} }

// Do runs call, retrying transient failures per the schedule. It returns
// the first success, or the last error once retries are exhausted or a
// permanent classification is hit.
func (r *Retrier) Do(ctx context.Context, call Call) (*transport.Result, error) {
	schedule := newFixedSchedule()
	logger := logging.FromContext(ctx)

	for attempt := 0; ; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, nil
		}

		if Classify(err) == Permanent {
			return nil, err
		}
		if attempt >= MaxRetries {
			return nil, err
		}

		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			return nil, err
		}
		if override, ok := retryAfterOverride(err); ok {
			delay = override
		}

		logger.Warn().
			Str("event", "retry").
			Int("attempt", attempt+1).
			Int("max_retries", MaxRetries).
			Dur("wait", delay).
			Err(err).
			Msgf("[retry] attempt %d/%d failed, waiting %s", attempt+1, MaxRetries, delay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// retryAfterOverride reports the clamped [0,60]s delay an HTTPError's
// retry-after header requests, if present.
func retryAfterOverride(err error) (time.Duration, bool) {
	httpErr, ok := err.(*transport.HTTPError)
	if !ok || httpErr.RetryAfter < 0 {
		return 0, false
	}
	seconds := httpErr.RetryAfter
	if seconds < 0 {
		seconds = 0
	}
	if seconds > 60 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second, true
}
