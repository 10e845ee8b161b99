package plan

// allocator hands out regions of a growing arena, reusing freed ones.
//
// The free list is ordered by release time, oldest first. acquire picks the
// smallest free region that fits; ties go to the most recently released one.
type allocator struct {
	free []Region
	top  int
}

func (a *allocator) acquire(size int) Region {
	best := -1
	for i, r := range a.free {
		if r.Size < size {
			continue
		}
		if best < 0 || r.Size <= a.free[best].Size {
			best = i
		}
	}

	if best >= 0 {
		r := a.free[best]
		a.free = append(a.free[:best], a.free[best+1:]...)
		if r.Size > size {
			// Keep the remainder in the free list at its old recency.
			rest := Region{Offset: r.Offset + size, Size: r.Size - size}
			a.free = insertAt(a.free, best, rest)
		}
		return Region{Offset: r.Offset, Size: size}
	}

	// Grow the free tail instead of leaving a hole below the new block.
	for i, r := range a.free {
		if r.End() == a.top {
			a.free = append(a.free[:i], a.free[i+1:]...)
			a.top = r.Offset + size
			return Region{Offset: r.Offset, Size: size}
		}
	}

	r := Region{Offset: a.top, Size: size}
	a.top += size
	return r
}

func (a *allocator) release(r Region) {
	if r.Size == 0 {
		return
	}
	// Coalesce with byte-adjacent neighbours.
	for merged := true; merged; {
		merged = false
		for i, f := range a.free {
			if f.End() == r.Offset || r.End() == f.Offset {
				if f.Offset < r.Offset {
					r.Offset = f.Offset
				}
				r.Size += f.Size
				a.free = append(a.free[:i], a.free[i+1:]...)
				merged = true
				break
			}
		}
	}
	a.free = append(a.free, r)
}

func insertAt(s []Region, i int, r Region) []Region {
	s = append(s, Region{})
	copy(s[i+1:], s[i:])
	s[i] = r
	return s
}
