package combin

// Iterator walks the m-combinations of {1..n} in lexicographic order by
// standard succession. It yields exactly C(n, m) tuples and then stops for
// good; construct a new Iterator to walk again.
type Iterator struct {
	n, m    int
	cur     []int
	started bool
	done    bool
	emitted uint64
}

// NewIterator returns an iterator over the m-combinations of an n-set.
func NewIterator(n, m int) *Iterator {
	return &Iterator{n: n, m: m}
}

// Next returns the next 1-indexed tuple in a fresh slice.
func (it *Iterator) Next() ([]int, bool) {
	idx, ok := it.NextIndices()
	if !ok {
		return nil, false
	}
	out := make([]int, len(idx))
	for i, x := range idx {
		out[i] = x + 1
	}
	return out, true
}

// NextIndices returns the next tuple as 0-based indices. The slice is owned
// by the iterator and overwritten by the following call.
func (it *Iterator) NextIndices() ([]int, bool) {
	if it.done {
		return nil, false
	}
	if !it.started {
		it.started = true
		if it.m < 0 || it.m > it.n {
			it.done = true
			return nil, false
		}
		it.cur = firstCombination(it.m)
		it.emitted = 1
		return it.cur, true
	}
	if !advance(it.cur, it.n) {
		it.done = true
		return nil, false
	}
	it.emitted++
	return it.cur, true
}

// Emitted returns how many tuples have been produced so far.
func (it *Iterator) Emitted() uint64 { return it.emitted }
