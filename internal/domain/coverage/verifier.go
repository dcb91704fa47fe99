// Package coverage proves or disproves that a ticket set covers every
// coverable m-subset of a pool.
package coverage

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/okian/wheelsmith/internal/domain/combin"
	"github.com/okian/wheelsmith/internal/domain/groups"
	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/pkg/logger"
)

// ProgressFunc receives the number of subsets examined so far out of C(n,m).
type ProgressFunc func(ctx context.Context, progress, total uint64)

// Verifier runs exhaustive coverage checks. It holds no per-run state and is
// safe for concurrent use.
type Verifier struct {
	log         logger.Logger
	interval    uint64
	sampleLimit int
	maxSubsets  uint64
}

// New creates a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		interval:    DefaultCheckpointInterval,
		sampleLimit: DefaultSampleLimit,
		maxSubsets:  DefaultMaxSubsets,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.log == nil {
		v.log = logger.Named("verifier")
	}
	return v
}

// Validate checks req the way Verify would before scanning and returns
// C(n,m), the number of subsets a run will examine.
func (v *Verifier) Validate(req model.VerifyRequest) (uint64, error) {
	const op = "coverage.validate"
	pool, err := model.NormalizePool(req.Pool)
	if err != nil {
		return 0, err
	}
	if err := model.CheckParams(op, len(pool), req.K, req.M); err != nil {
		return 0, err
	}
	total, err := v.size(op, len(pool), req.M)
	if err != nil {
		return 0, err
	}
	if _, err := groups.ResolveFixed(pool, req.K, req.Constraints, req.Fixed); err != nil {
		return 0, err
	}
	if _, err := ticketIndices(op, pool, req.K, req.Tickets); err != nil {
		return 0, err
	}
	return total, nil
}

// ticketIndices maps every ticket onto pool indices. Numbers outside the pool
// and repeats are dropped; what remains must be exactly k numbers.
func ticketIndices(op string, pool model.Pool, k int, tickets [][]int) ([][]int, error) {
	out := make([][]int, len(tickets))
	for i, values := range tickets {
		idx, _ := pool.Indices(values)
		if len(idx) != k {
			return nil, model.Errorf(op, model.ErrInvalidParameters,
				"ticket %d has %d distinct pool numbers, want k=%d", i, len(idx), k)
		}
		out[i] = idx
	}
	return out, nil
}

func (v *Verifier) size(op string, n, m int) (uint64, error) {
	c, ok := combin.Binomial64(n, m)
	if !ok || c > v.maxSubsets {
		return 0, model.Errorf(op, model.ErrCapacityExceeded,
			"verification needs C(%d,%d) = %s subsets, cap is %d", n, m, combin.Binomial(n, m), v.maxSubsets)
	}
	return c, nil
}

// Verify marks every m-subset of every ticket in a bitset indexed by rank and
// then walks all m-subsets of the pool. Each ticket must hold exactly k
// distinct pool numbers. Subsets missing a fixed number, or
// that no valid ticket could hold, are left out of both counts. onProgress
// may be nil; it is called at every checkpoint, after which the run yields
// and observes ctx.
func (v *Verifier) Verify(ctx context.Context, req model.VerifyRequest, onProgress ProgressFunc) (*model.CoverageResult, error) {
	const op = "coverage.verify"
	start := time.Now()

	pool, err := model.NormalizePool(req.Pool)
	if err != nil {
		return nil, err
	}
	n, k, m := len(pool), req.K, req.M
	if err := model.CheckParams(op, n, k, m); err != nil {
		return nil, err
	}
	if _, err := v.size(op, n, m); err != nil {
		return nil, err
	}
	set, err := groups.ResolveFixed(pool, k, req.Constraints, req.Fixed)
	if err != nil {
		return nil, err
	}
	tickets, err := ticketIndices(op, pool, k, req.Tickets)
	if err != nil {
		return nil, err
	}
	table, err := combin.NewRankTable(n, m)
	if err != nil {
		return nil, err
	}
	raw := table.Size()

	covered := bitset.New(uint(raw))
	sub := make([]int, m)
	for _, idx := range tickets {
		it := combin.NewIterator(k, m)
		for c, ok := it.NextIndices(); ok; c, ok = it.NextIndices() {
			for i, p := range c {
				sub[i] = idx[p]
			}
			covered.Set(uint(table.Rank(sub)))
		}
	}

	res := &model.CoverageResult{RawTotal: raw, Samples: [][]int{}}
	var examined uint64
	it := combin.NewIterator(n, m)
	for idx, ok := it.NextIndices(); ok; idx, ok = it.NextIndices() {
		examined++
		if set.Coverable(idx) {
			res.Total++
			if !covered.Test(uint(table.Rank(idx))) {
				res.UncoveredCount++
				if len(res.Samples) < v.sampleLimit {
					res.Samples = append(res.Samples, []int(pool.Values(idx)))
				}
			}
		}
		if examined%v.interval == 0 {
			if onProgress != nil {
				onProgress(ctx, examined, raw)
			}
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%s: cancelled after %d of %d subsets: %w", op, examined, raw, err)
			}
		}
	}
	res.Pass = res.UncoveredCount == 0

	v.log.Debug(ctx, "coverage verified",
		logger.Int("tickets", len(req.Tickets)),
		logger.Uint64("total", res.Total),
		logger.Uint64("uncovered", res.UncoveredCount),
		logger.Bool("pass", res.Pass),
		logger.Duration("elapsed", time.Since(start)))
	return res, nil
}
