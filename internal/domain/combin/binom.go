// Package combin is the combinatorics kernel: binomial coefficients,
// k-combination enumeration, combinatorial ranking and a sequential
// m-combination iterator. Everything here is pure and safe for concurrent use.
package combin

import (
	"math/big"
	"math/bits"
)

// Binomial returns C(n, k) exactly. It returns 0 when k < 0 or k > n.
func Binomial(n, k int) *big.Int {
	if k < 0 || k > n {
		return new(big.Int)
	}
	if k > n-k {
		k = n - k
	}
	r := big.NewInt(1)
	var t big.Int
	for i := 0; i < k; i++ {
		r.Mul(r, t.SetInt64(int64(n-i)))
		r.Quo(r, t.SetInt64(int64(i+1)))
	}
	return r
}

// Binomial64 returns C(n, k) when it fits in a uint64. The second result is
// false on overflow. It returns (0, true) when k < 0 or k > n.
func Binomial64(n, k int) (uint64, bool) {
	if k < 0 || k > n {
		return 0, true
	}
	if k > n-k {
		k = n - k
	}
	r := uint64(1)
	for i := 0; i < k; i++ {
		hi, lo := bits.Mul64(r, uint64(n-i))
		d := uint64(i + 1)
		// The running value is C(n, i+1) and grows with i, so an
		// intermediate overflow means the result overflows too.
		if hi >= d {
			return 0, false
		}
		r, _ = bits.Div64(hi, lo, d)
	}
	return r, true
}

// FitsWithin reports whether C(n, k) <= limit.
func FitsWithin(n, k int, limit uint64) bool {
	c, ok := Binomial64(n, k)
	return ok && c <= limit
}
