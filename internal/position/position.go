// Package position allocates fractional order keys. A key for a new or moved
// entry is computed from its neighbours only, so no other entry is rewritten.
package position

// Seed is the key given to the first entry of an empty list.
const Seed = 1.0

// MinGap is the smallest neighbour gap still considered safe to split.
const MinGap = 1e-9

// Allocate returns a key that sorts between prev and next. A nil bound means
// the entry goes to that end of the list.
func Allocate(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return Seed
	case prev == nil:
		return *next - 1
	case next == nil:
		return *prev + 1
	}
	return (*prev + *next) / 2
}

// Bounds returns the neighbour keys for inserting at index into positions,
// which must be sorted ascending and must not contain the entry being moved.
func Bounds(index int, positions []float64) (prev, next *float64) {
	if index < 0 {
		index = 0
	}
	if index > len(positions) {
		index = len(positions)
	}
	if index > 0 {
		p := positions[index-1]
		prev = &p
	}
	if index < len(positions) {
		n := positions[index]
		next = &n
	}
	return prev, next
}

// Between reports whether p sorts strictly inside the given bounds.
func Between(prev, next *float64, p float64) bool {
	if prev != nil && p <= *prev {
		return false
	}
	if next != nil && p >= *next {
		return false
	}
	return true
}

// Exhausted reports whether the gap between prev and next can no longer be
// split in float64. Repeated midpoint insertion at one spot reaches this after
// roughly fifty splits; callers rebalance the list when it happens.
func Exhausted(prev, next *float64) bool {
	if prev == nil || next == nil {
		return false
	}
	if *next-*prev < MinGap {
		return true
	}
	return !Between(prev, next, Allocate(prev, next))
}

// Spread returns n evenly spaced keys starting at Seed.
func Spread(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = Seed + float64(i)
	}
	return out
}
