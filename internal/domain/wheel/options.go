package wheel

import "github.com/okian/wheelsmith/pkg/logger"

// Builder limits.
const (
	DefaultMaxSteps  = 200_000
	minCandidates    = 10
	maxQuotaAttempts = 1_000
	perturbPerSlot   = 16
)

type config struct {
	log      logger.Logger
	maxSteps int
}

// Option configures Build.
type Option func(*config)

// WithLogger sets the logger used for build summaries.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMaxSteps overrides the step ceiling of a greedy run.
func WithMaxSteps(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{maxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("wheel")
	}
	return c
}
