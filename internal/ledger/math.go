package ledger

import (
	"math"
	"math/bits"
)

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// saturatingDec never goes below zero; the bool reports whether it clamped.
func saturatingDec(v uint64) (uint64, bool) {
	if v == 0 {
		return 0, true
	}
	return v - 1, false
}

func addSeconds(now int64, seconds uint32) (int64, error) {
	if now > math.MaxInt64-int64(seconds) {
		return 0, ErrOverflow
	}
	return now + int64(seconds), nil
}
