// Package spike decides, per feed and per polling cycle, whether a listener
// count is a meaningful upward spike over the feed's running baseline.
package spike

import "github.com/HerbHall/feedwatch/internal/config"

// RequiredJump returns the fractional jump over baseline a feed with the
// given listener count must exceed to count as over threshold.
//
// The pivot is the high-listener quantum P (HighListenerDecEvery):
//   - below P, LowListenerIncrease is added once per listener short of P
//   - at or above P, HighListenerDec is subtracted once per complete P above P
//
// The adjustments never both apply, the result never increases with the
// listener count, and it is never negative.
func RequiredJump(listeners uint32, s config.Spike) float32 {
	pivot := s.HighListenerDecEvery
	if pivot < config.MinHighListenerDecEvery {
		pivot = config.MinHighListenerDecEvery
	}

	jump := s.Jump
	count := float32(listeners)

	if count < pivot {
		jump += s.LowListenerIncrease * (pivot - count)
	} else {
		steps := float32(int64((count - pivot) / pivot))
		jump -= s.HighListenerDec * steps
	}

	if jump < 0 {
		return 0
	}
	return jump
}

// Threshold returns the listener count a feed must exceed to be over
// threshold given its baseline.
func Threshold(baseline float32, listeners uint32, s config.Spike) float32 {
	return baseline * (1 + RequiredJump(listeners, s))
}
