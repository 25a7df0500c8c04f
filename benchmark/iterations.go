package benchmark

import "iter"

// ScaledCount returns baseUnit × the factor's multiplier, never less than one.
func ScaledCount(factor ScalingFactor, baseUnit int) int {
	if baseUnit < 1 {
		baseUnit = 1
	}
	m := factor.Multiplier()
	if m < 1 {
		m = 1
	}
	return baseUnit * m
}

// Iterations returns a lazy sequence of the indices 0 .. ScaledCount(factor, baseUnit)-1.
//
// Each call returns an independent sequence, and each range over the returned
// sequence starts again at zero. Breaking out of the loop early is fine.
//
// Arguments:
//   - factor: The scaling factor applied to baseUnit.
//   - baseUnit: The unscaled count. Values below one are treated as one.
//
// Returns:
//   - iter.Seq[int]: The index sequence. No backing slice is allocated.
func Iterations(factor ScalingFactor, baseUnit int) iter.Seq[int] {
	n := ScaledCount(factor, baseUnit)
	return func(yield func(int) bool) {
		for i := 0; i < n; i++ {
			if !yield(i) {
				return
			}
		}
	}
}
