package wheel

import (
	"hash/fnv"
	"time"
)

// Park-Miller parameters.
const (
	lehmerModulus    = 1<<31 - 1
	lehmerMultiplier = 48271
)

// Lehmer is a Park-Miller generator. The same seed string always yields the
// same sequence.
type Lehmer struct {
	state uint64
}

// NewLehmer seeds the generator with the FNV-1a hash of seed. An empty seed
// is replaced by the current time.
func NewLehmer(seed string) *Lehmer {
	var s uint32
	if seed == "" {
		s = uint32(time.Now().UnixNano())
	} else {
		h := fnv.New32a()
		_, _ = h.Write([]byte(seed))
		s = h.Sum32()
	}
	st := uint64(s) % lehmerModulus
	if st == 0 {
		st = 1
	}
	return &Lehmer{state: st}
}

// Float returns the next value in (0, 1).
func (r *Lehmer) Float() float64 {
	r.state = r.state * lehmerMultiplier % lehmerModulus
	return float64(r.state) / lehmerModulus
}

// Intn returns a value in [0, n). n must be positive.
func (r *Lehmer) Intn(n int) int {
	i := int(r.Float() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
