package coverage

import "github.com/okian/wheelsmith/pkg/logger"

// Verifier defaults.
const (
	DefaultCheckpointInterval = 50_000
	DefaultSampleLimit        = 50
	DefaultMaxSubsets         = 1 << 30
)

// Option configures a Verifier.
type Option func(*Verifier)

// WithLogger sets the verifier's logger.
func WithLogger(l logger.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.log = l
		}
	}
}

// WithCheckpointInterval sets how many subsets are examined between progress
// reports.
func WithCheckpointInterval(n uint64) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.interval = n
		}
	}
}

// WithSampleLimit sets how many uncovered subsets are reported.
func WithSampleLimit(n int) Option {
	return func(v *Verifier) {
		if n >= 0 {
			v.sampleLimit = n
		}
	}
}

// WithMaxSubsets bounds C(n,m), and with it the size of the coverage bitset.
func WithMaxSubsets(n uint64) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.maxSubsets = n
		}
	}
}
