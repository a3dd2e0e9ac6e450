package attempts

import (
	"time"

	"paperling/internal/config"
)

// Policy decides whether a previously failed document is retried.
type Policy struct {
	// MaxAttempts stops retries after this many consecutive failures. Zero retries forever.
	MaxAttempts int
	// Backoff delays the first retry; each further failure doubles it. Zero retries on the next poll.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// PolicyFromConfig builds a Policy from the workflow settings.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return Policy{}
	}
	return Policy{
		MaxAttempts: cfg.Workflow.MaxAttempts,
		Backoff:     time.Duration(cfg.Workflow.RetryBackoffSeconds) * time.Second,
		MaxBackoff:  time.Duration(cfg.Workflow.MaxBackoffSeconds) * time.Second,
	}
}

// Verdict is the outcome of a policy check.
type Verdict int

const (
	// Eligible means the document may be enqueued now.
	Eligible Verdict = iota
	// Waiting means the document is within its backoff window.
	Waiting
	// Exhausted means the document reached MaxAttempts.
	Exhausted
)

func (v Verdict) String() string {
	switch v {
	case Waiting:
		return "waiting"
	case Exhausted:
		return "exhausted"
	default:
		return "eligible"
	}
}

// Check evaluates rec at now. A zero Record (no history) is always eligible.
func (p Policy) Check(rec Record, now time.Time) Verdict {
	if rec.Failures <= 0 {
		return Eligible
	}
	if p.MaxAttempts > 0 && rec.Failures >= p.MaxAttempts {
		return Exhausted
	}
	if now.Before(p.NextAttemptAt(rec)) {
		return Waiting
	}
	return Eligible
}

// NextAttemptAt returns when rec becomes eligible again under the backoff rule.
func (p Policy) NextAttemptAt(rec Record) time.Time {
	return rec.LastFailedAt.Add(p.Delay(rec.Failures))
}

// Delay is Backoff * 2^(failures-1), capped at MaxBackoff when set.
func (p Policy) Delay(failures int) time.Duration {
	if p.Backoff <= 0 || failures <= 0 {
		return 0
	}
	delay := p.Backoff
	for i := 1; i < failures; i++ {
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			break
		}
		next := delay * 2
		if next < delay {
			break
		}
		delay = next
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	return delay
}
