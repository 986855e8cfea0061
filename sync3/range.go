package sync3

// SliceRanges is a set of inclusive [start,end] index ranges into a list.
type SliceRanges [][2]int64

func (r SliceRanges) Valid() bool {
	for _, sr := range r {
		// always goes from start to end
		if sr[1] < sr[0] {
			return false
		}
		if sr[0] < 0 {
			return false
		}
	}
	return true
}

// Inside returns true if i is inside the range
func (r SliceRanges) Inside(i int64) bool {
	_, ok := r.Containing(i)
	return ok
}

// Containing returns the first range which includes i.
func (r SliceRanges) Containing(i int64) ([2]int64, bool) {
	for _, sr := range r {
		if sr[0] <= i && i <= sr[1] {
			return sr, true
		}
	}
	return [2]int64{}, false
}

// Copy returns a copy of these ranges which is safe to modify. Returns nil for nil ranges.
func (r SliceRanges) Copy() SliceRanges {
	if r == nil {
		return nil
	}
	cpy := make(SliceRanges, len(r))
	copy(cpy, r)
	return cpy
}

// Same returns true if both sets of ranges are identical, including their order.
func (r SliceRanges) Same(other SliceRanges) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}
