package wheel

import (
	"github.com/okian/wheelsmith/internal/domain/combin"
	"github.com/okian/wheelsmith/internal/domain/groups"
	"github.com/okian/wheelsmith/internal/domain/model"
)

// MaxUniverse is the largest subset count the enumeration modes will produce.
const MaxUniverse = 100_000

// UniverseK lists every k-subset of the pool that meets every group quota.
func UniverseK(pool model.Pool, set *groups.Set) ([]model.Ticket, error) {
	return enumerate("wheel.universe_k", pool, set.K(), set.Satisfied)
}

// UniverseM lists every m-subset of the pool that holds all fixed numbers and
// can still be extended to a valid ticket.
func UniverseM(pool model.Pool, set *groups.Set, m int) ([]model.Ticket, error) {
	return enumerate("wheel.universe_m", pool, m, set.Coverable)
}

// enumerate refuses before doing any work when C(n,r) exceeds MaxUniverse.
// The cap applies to the unfiltered count.
func enumerate(op string, pool model.Pool, r int, keep func([]int) bool) ([]model.Ticket, error) {
	n := len(pool)
	if !combin.FitsWithin(n, r, MaxUniverse) {
		return nil, model.Errorf(op, model.ErrCapacityExceeded,
			"enumeration needs C(%d,%d) = %s subsets, cap is %d", n, r, combin.Binomial(n, r), MaxUniverse)
	}
	var out []model.Ticket
	it := combin.NewIterator(n, r)
	for idx, ok := it.NextIndices(); ok; idx, ok = it.NextIndices() {
		if keep(idx) {
			out = append(out, pool.Values(idx))
		}
	}
	return out, nil
}
