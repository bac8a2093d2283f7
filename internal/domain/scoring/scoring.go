// Package scoring maps raw tap counts onto scores.
package scoring

// Every bonusInterval-th tap grants bonusPoints on top of the linear count.
const (
	bonusInterval = 11
	bonusPoints   = 10
)

// Score computes the score for a tap count:
//
//	score = count + floor(count/11) * 10
//
// Deterministic and monotonically non-decreasing in count. Callers must
// recompute the score from the full count after every change rather than
// patching it incrementally, so the stored score can never drift.
func Score(count int64) int64 {
	return count + (count/bonusInterval)*bonusPoints
}
