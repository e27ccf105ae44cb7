package recovery

import "time"

// RetryStrategy decides when a queued block is due and whether it is worth
// another attempt.
type RetryStrategy interface {
	// GetDelay returns how long to wait after the given number of retries.
	GetDelay(retries int) time.Duration

	// ShouldRetry reports whether attempt number attempt may run after err.
	ShouldRetry(err error, attempt int) bool
}

// ExponentialBackoff doubles the wait per retry up to MaxDelay. Failures the
// classifier marks permanent are never retried.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	Classifier   Classifier
}

// DefaultBackoff waits 2s, 4s, 8s, 16s, 32s (capped at 60s) over 5 attempts.
// A nil classifier treats every error as transient.
func DefaultBackoff(classifier Classifier) *ExponentialBackoff {
	if classifier == nil {
		classifier = func(error) FailureCategory { return CategoryTransient }
	}
	return &ExponentialBackoff{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		MaxAttempts:  5,
		Classifier:   classifier,
	}
}

func (s *ExponentialBackoff) GetDelay(retries int) time.Duration {
	mult := s.Multiplier
	if mult <= 1 {
		mult = 2
	}
	delay := float64(s.InitialDelay)
	for i := 0; i < retries; i++ {
		delay *= mult
		if delay >= float64(s.MaxDelay) {
			return s.MaxDelay
		}
	}
	return time.Duration(delay)
}

func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return s.Classifier(err) == CategoryTransient
}
