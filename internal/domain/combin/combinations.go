package combin

// maxPrealloc bounds the capacity reserved up front by KCombinations.
const maxPrealloc = 1 << 16

// KCombinations returns every k-element sub-sequence of values in
// lexicographic order of index. Each combination keeps the relative order of
// values. Callers are responsible for bounding the result size.
func KCombinations[T any](values []T, k int) [][]T {
	n := len(values)
	if k < 0 || k > n {
		return nil
	}
	var out [][]T
	if c, ok := Binomial64(n, k); ok && c <= maxPrealloc {
		out = make([][]T, 0, c)
	}
	idx := firstCombination(k)
	for {
		c := make([]T, k)
		for i, x := range idx {
			c[i] = values[x]
		}
		out = append(out, c)
		if !advance(idx, n) {
			return out
		}
	}
}

// IndexCombinations returns every k-combination of 0..n-1.
func IndexCombinations(n, k int) [][]int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return KCombinations(idx, k)
}

func firstCombination(k int) []int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// advance moves idx to the lexicographically next k-combination of 0..n-1:
// the rightmost position that can still grow is incremented and every
// position to its right is reset to follow it. It returns false once idx is
// the last combination.
func advance(idx []int, n int) bool {
	k := len(idx)
	i := k - 1
	for i >= 0 && idx[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < k; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}
