package ledger

import (
	"time"

	fpmath "YieldLedger/internal/math"
)

// PendingRewards returns the rewards earned since the last claim, linear in
// principal and elapsed time at the stake's snapshotted APY. Pure function of
// the record and the supplied clock; calling it never mutates the stake.
func PendingRewards(s *StakedAsset, now time.Time) int64 {
	if !s.IsActive {
		return 0
	}
	elapsed := now.Unix() - s.LastRewardClaim.Unix()
	return fpmath.ComputeAccruedRewards(s.StakedAmount, s.YieldRate, elapsed)
}
