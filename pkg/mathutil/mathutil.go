// Package mathutil provides small numeric helpers used by the batching
// bisection logic in the refactoring engine.
package mathutil

// Min returns the smaller of a and b.
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
