// Package scoring rates candidate tickets by how many still-uncovered target
// m-subsets they would cover.
package scoring

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/okian/wheelsmith/internal/domain/combin"
	"github.com/okian/wheelsmith/internal/domain/model"
)

// ExactThreshold is the largest C(n,m) for which target subsets are tracked
// one by one.
const ExactThreshold = 1_000_000

// Scorer computes the gain of candidate tickets. Tickets are sorted pool
// indices of length k. Implementations are not safe for concurrent use.
type Scorer interface {
	// Gain returns how many uncovered targets ticket would cover.
	Gain(ticket []int) uint64
	// Mark records ticket as accepted and returns the gain it realized.
	Mark(ticket []int) uint64
	// Remaining returns the number of uncovered targets.
	Remaining() uint64
	// MaxGain is the best gain a single ticket can reach, C(k,m).
	MaxGain() uint64
	// Exact reports whether gains reflect real coverage.
	Exact() bool
}

// Target decides whether an m-subset of pool indices must be covered.
type Target func(idx []int) bool

// New returns an exact scorer when C(n,m) fits under ExactThreshold and an
// approximate one otherwise.
func New(n, k, m int, target Target) (Scorer, error) {
	if combin.FitsWithin(n, m, ExactThreshold) {
		return NewExact(n, k, m, target)
	}
	return NewApprox(k, m), nil
}

// ExactScorer keeps one bit per m-subset rank; a set bit is an uncovered target.
type ExactScorer struct {
	table     *combin.RankTable
	uncovered *bitset.BitSet
	remaining uint64
	subsets   [][]int
	scratch   []int
	maxGain   uint64
}

// NewExact enumerates every m-subset of n once and records those accepted by
// target. A nil target accepts all of them.
func NewExact(n, k, m int, target Target) (*ExactScorer, error) {
	const op = "scoring.new_exact"
	if err := model.CheckParams(op, n, k, m); err != nil {
		return nil, err
	}
	table, err := combin.NewRankTable(n, m)
	if err != nil {
		return nil, err
	}
	s := &ExactScorer{
		table:     table,
		uncovered: bitset.New(uint(table.Size())),
		subsets:   combin.IndexCombinations(k, m),
		scratch:   make([]int, m),
		maxGain:   table.Binomial(k, m),
	}
	it := combin.NewIterator(n, m)
	for idx, ok := it.NextIndices(); ok; idx, ok = it.NextIndices() {
		if target != nil && !target(idx) {
			continue
		}
		s.uncovered.Set(uint(table.Rank(idx)))
		s.remaining++
	}
	return s, nil
}

func (s *ExactScorer) Gain(ticket []int) uint64 {
	var g uint64
	for _, sub := range s.subsets {
		if s.uncovered.Test(s.rank(ticket, sub)) {
			g++
		}
	}
	return g
}

func (s *ExactScorer) Mark(ticket []int) uint64 {
	var g uint64
	for _, sub := range s.subsets {
		r := s.rank(ticket, sub)
		if s.uncovered.Test(r) {
			s.uncovered.Clear(r)
			g++
		}
	}
	s.remaining -= g
	return g
}

func (s *ExactScorer) rank(ticket, sub []int) uint {
	for i, p := range sub {
		s.scratch[i] = ticket[p]
	}
	return uint(s.table.Rank(s.scratch))
}

func (s *ExactScorer) Remaining() uint64 { return s.remaining }

func (s *ExactScorer) MaxGain() uint64 { return s.maxGain }

func (s *ExactScorer) Exact() bool { return true }

// Uncovered returns an uncovered target, searching upward from rank from and
// wrapping around. It returns false once every target is covered.
func (s *ExactScorer) Uncovered(from uint64) ([]int, bool) {
	if s.remaining == 0 {
		return nil, false
	}
	r, ok := s.uncovered.NextSet(uint(from % s.table.Size()))
	if !ok {
		r, ok = s.uncovered.NextSet(0)
	}
	if !ok {
		return nil, false
	}
	idx, err := s.table.Unrank(uint64(r))
	if err != nil {
		return nil, false
	}
	return idx, true
}

// Size returns C(n,m), the number of ranks tracked.
func (s *ExactScorer) Size() uint64 { return s.table.Size() }

// ApproxScorer treats every candidate as covering C(k,m) new targets.
type ApproxScorer struct {
	gain uint64
}

// NewApprox returns the scorer used when exact tracking is too large.
func NewApprox(k, m int) *ApproxScorer {
	g, ok := combin.Binomial64(k, m)
	if !ok {
		g = math.MaxUint64
	}
	return &ApproxScorer{gain: g}
}

func (s *ApproxScorer) Gain([]int) uint64 { return s.gain }

func (s *ApproxScorer) Mark([]int) uint64 { return s.gain }

func (s *ApproxScorer) Remaining() uint64 { return 0 }

func (s *ApproxScorer) MaxGain() uint64 { return s.gain }

func (s *ApproxScorer) Exact() bool { return false }
