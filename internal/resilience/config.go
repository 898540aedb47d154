package resilience

import "time"

// PolicyFromConfig builds a RetryPolicy from config values, keeping defaults
// for anything non-positive.
func PolicyFromConfig(maxAttempts, initialBackoffMs, maxBackoffMs int) RetryPolicy {
	p := DefaultRetryPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return p
}

// BreakerFromConfig builds a BreakerConfig for the named service.
func BreakerFromConfig(name string, failureThreshold, cooldownSecs int) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: failureThreshold,
		Cooldown:         time.Duration(cooldownSecs) * time.Second,
	}
}
