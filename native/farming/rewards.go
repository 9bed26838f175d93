package farming

import "math/big"

// dayReward computes the frozen emission for a day being finalized. The base
// allocation is the even split of the deposited pool across the epoch; the
// bonus or penalty rate applies depending on how the day's volume compares
// with the baseline in force during that day. Cumulative emission is clamped
// to the deposited pool so the conservation invariant can never be violated
// by a run of bonus days.
func dayReward(p *Program, daily, baseline *big.Int) *big.Int {
	if p == nil || !p.Funded() || p.TotalDays == 0 {
		return big.NewInt(0)
	}
	base := new(big.Int).Quo(p.DepositedReward, new(big.Int).SetUint64(p.TotalDays))
	rate := p.PenaltyRateBps
	if copyBigInt(daily).Cmp(copyBigInt(baseline)) >= 0 {
		rate = p.BonusRateBps
	}
	reward := new(big.Int).Mul(base, new(big.Int).SetUint64(rate))
	reward.Quo(reward, big.NewInt(RateBpsDenominator))

	remaining := new(big.Int).Sub(p.DepositedReward, copyBigInt(p.EmittedReward))
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	if reward.Cmp(remaining) > 0 {
		reward = remaining
	}
	return reward
}

// proRataShare returns the participant's slice of a day's frozen reward,
// floor-divided so the day can never pay out more than was emitted:
//
//	dailyReward * userVolume / dailyVolume
func proRataShare(dailyReward, userVolume, dailyVolume *big.Int) *big.Int {
	if dailyReward == nil || userVolume == nil || dailyVolume == nil || dailyVolume.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(dailyReward, userVolume)
	return share.Quo(share, dailyVolume)
}
