package reliability

import (
	"time"

	"knowledgecore/internal/config"
)

// RetryConfigFromConfig builds a RetryConfig from the process-wide
// reliability tuning knobs.
func RetryConfigFromConfig(c config.ReliabilityConfig) RetryConfig {
	return FromTuning(c.MaxRetries, c.BaseBackoffMS, c.MaxBackoffMS)
}

// NewRegistryFromConfig builds the breaker Registry using
// config.ReliabilityConfig.CircuitBreakerThreshold/CircuitBreakerCooldownSeconds
// as the tuning override applied on top of each dependency's default.
func NewRegistryFromConfig(c config.ReliabilityConfig) *Registry {
	tuning := BreakerConfig{
		FailureThreshold: c.CircuitBreakerThreshold,
		Cooldown:         time.Duration(c.CircuitBreakerCooldownSeconds) * time.Second,
	}
	return NewRegistry(tuning)
}
