package combin

import (
	"math/bits"

	"github.com/okian/wheelsmith/internal/domain/model"
)

// RankTable maps the m-subsets of an n-set, given as strictly increasing
// 0-based indices, onto 0..C(n,m)-1 and back.
//
// The table holds Pascal's triangle B[i][j] = C(i,j) for 0<=i<=n, 0<=j<=m and
// the rank of a[0..m) is Σ B[a[i]][i+1] (combinatorial number system).
type RankTable struct {
	n, m int
	b    [][]uint64
	size uint64
}

// NewRankTable precomputes the table for (n, m). It fails with
// ErrCapacityExceeded when any needed coefficient overflows uint64.
func NewRankTable(n, m int) (*RankTable, error) {
	const op = "combin.new_rank_table"
	if n < 0 || m < 0 || m > n {
		return nil, model.Errorf(op, model.ErrInvalidParameters, "need 0 <= m <= n, got n=%d m=%d", n, m)
	}
	b := make([][]uint64, n+1)
	for i := 0; i <= n; i++ {
		b[i] = make([]uint64, m+1)
		b[i][0] = 1
		for j := 1; j <= m && j <= i; j++ {
			s, carry := bits.Add64(b[i-1][j-1], b[i-1][j], 0)
			if carry != 0 {
				return nil, model.Errorf(op, model.ErrCapacityExceeded, "C(%d,%d) does not fit in 64 bits", i, j)
			}
			b[i][j] = s
		}
	}
	return &RankTable{n: n, m: m, b: b, size: b[n][m]}, nil
}

// N returns the size of the underlying set.
func (t *RankTable) N() int { return t.n }

// M returns the subset size.
func (t *RankTable) M() int { return t.m }

// Size returns C(n, m), the number of distinct ranks.
func (t *RankTable) Size() uint64 { return t.size }

// Binomial returns C(i, j) from the table for 0<=i<=n, 0<=j<=m.
func (t *RankTable) Binomial(i, j int) uint64 { return t.b[i][j] }

// Rank returns the rank of a strictly increasing tuple of m indices in [0, n).
// The tuple is not validated.
func (t *RankTable) Rank(idx []int) uint64 {
	var r uint64
	for i, a := range idx {
		r += t.b[a][i+1]
	}
	return r
}

// Unrank returns the strictly increasing index tuple whose rank is r.
func (t *RankTable) Unrank(r uint64) ([]int, error) {
	if r >= t.size {
		return nil, model.Errorf("combin.unrank", model.ErrInvalidParameters, "rank %d out of range [0, %d)", r, t.size)
	}
	idx := make([]int, t.m)
	a := t.n - 1
	for i := t.m - 1; i >= 0; i-- {
		for t.b[a][i+1] > r {
			a--
		}
		idx[i] = a
		r -= t.b[a][i+1]
		a--
	}
	return idx, nil
}
