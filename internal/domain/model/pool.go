// Package model contains domain types passed between the engine and its callers.
package model

import (
	"slices"
)

// Pool is the ordered set of distinct positive numbers a wheel is drawn from.
type Pool []int

// Ticket is a sorted set of pool values.
type Ticket []int

// NormalizePool returns a sorted copy of numbers, rejecting duplicates and
// non-positive values.
func NormalizePool(numbers []int) (Pool, error) {
	const op = "model.normalize_pool"
	if len(numbers) == 0 {
		return nil, Errorf(op, ErrInvalidParameters, "pool is empty")
	}
	p := slices.Clone(numbers)
	slices.Sort(p)
	for i, v := range p {
		if v <= 0 {
			return nil, Errorf(op, ErrInvalidParameters, "pool number %d is not positive", v)
		}
		if i > 0 && p[i-1] == v {
			return nil, Errorf(op, ErrInvalidParameters, "pool number %d appears more than once", v)
		}
	}
	return Pool(p), nil
}

// IndexOf returns the position of v in the pool, or -1.
func (p Pool) IndexOf(v int) int {
	i, ok := slices.BinarySearch(p, v)
	if !ok {
		return -1
	}
	return i
}

// Values maps sorted pool indices back to pool values.
func (p Pool) Values(idx []int) Ticket {
	t := make(Ticket, len(idx))
	for i, x := range idx {
		t[i] = p[x]
	}
	return t
}

// Indices maps values to sorted, de-duplicated pool indices. Values outside
// the pool are dropped and reported through the second return value.
func (p Pool) Indices(values []int) ([]int, int) {
	idx := make([]int, 0, len(values))
	dropped := 0
	for _, v := range values {
		i := p.IndexOf(v)
		if i < 0 {
			dropped++
			continue
		}
		idx = append(idx, i)
	}
	slices.Sort(idx)
	return slices.Compact(idx), dropped
}

// MaxPoolSize bounds n for every engine operation. Exact binomials grow
// quadratically in cost with n, and no lottery pool comes near it.
const MaxPoolSize = 1000

// CheckParams validates the (n, k, m) triple used by every engine operation.
func CheckParams(op string, n, k, m int) error {
	switch {
	case n <= 0:
		return Errorf(op, ErrInvalidParameters, "pool size must be positive, got %d", n)
	case n > MaxPoolSize:
		return Errorf(op, ErrInvalidParameters, "pool size %d exceeds the cap of %d", n, MaxPoolSize)
	case k <= 0 || k > n:
		return Errorf(op, ErrInvalidParameters, "ticket size k=%d must be in [1, %d]", k, n)
	case m <= 0 || m > k:
		return Errorf(op, ErrInvalidParameters, "guarantee m=%d must be in [1, %d]", m, k)
	}
	return nil
}
