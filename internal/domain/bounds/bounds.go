// Package bounds estimates how many tickets a covering design needs at least.
// The estimates are informative targets for the builder and are not always
// achievable.
package bounds

import (
	"math/big"

	"github.com/okian/wheelsmith/internal/domain/combin"
	"github.com/okian/wheelsmith/internal/domain/model"
)

// Stats summarizes the size of a (n, k, m) wheel problem.
type Stats struct {
	CountingBound   *big.Int `json:"counting_bound"`
	SchoenheimBound *big.Int `json:"schoenheim_bound"`
	LowerBound      *big.Int `json:"lower_bound"`
	// UniverseSize is C(n, m), the number of target subsets.
	UniverseSize *big.Int `json:"universe_size"`
	// AllTickets is C(n, k), the number of distinct tickets.
	AllTickets *big.Int `json:"all_tickets"`
}

// Compute validates (n, k, m) and returns every bound.
func Compute(n, k, m int) (Stats, error) {
	if err := model.CheckParams("bounds.compute", n, k, m); err != nil {
		return Stats{}, err
	}
	counting := Counting(n, k, m)
	schoenheim := Schoenheim(n, k, m)
	return Stats{
		CountingBound:   counting,
		SchoenheimBound: schoenheim,
		LowerBound:      maxOf(counting, schoenheim),
		UniverseSize:    combin.Binomial(n, m),
		AllTickets:      combin.Binomial(n, k),
	}, nil
}

// Counting returns ceil(C(n,m) / C(k,m)): one ticket covers at most C(k,m)
// distinct m-subsets.
func Counting(n, k, m int) *big.Int {
	den := combin.Binomial(k, m)
	if den.Sign() == 0 {
		return new(big.Int)
	}
	return ceilDiv(combin.Binomial(n, m), den)
}

// Schoenheim returns the nested Schönheim bound
// ceil(n/k * ceil((n-1)/(k-1) * ... ceil((n-m+1)/(k-m+1)))).
//
// The recurrence L_{i+1} = ceil(L_i*(n-i)/(k-i)) is evaluated from the
// innermost term outward, i = m-1 down to 0. Evaluating it from i = 0 upward
// rounds at the wrong end and can exceed the covering number: it gives 9 for
// (7,3,2), where the Fano plane covers with 7. S(49,6,3) is 948 here, 1023
// the other way round.
func Schoenheim(n, k, m int) *big.Int {
	l := big.NewInt(1)
	if m <= 0 || m > k {
		return l
	}
	var num, den big.Int
	for i := m - 1; i >= 0; i-- {
		num.Mul(l, num.SetInt64(int64(n-i)))
		l = ceilDiv(&num, den.SetInt64(int64(k-i)))
	}
	return l
}

// LowerBound returns max(Counting, Schoenheim).
func LowerBound(n, k, m int) *big.Int {
	return maxOf(Counting(n, k, m), Schoenheim(n, k, m))
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func maxOf(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
