package farming

import "math/big"

// Program captures the full lifecycle state of a single trade-farming
// campaign: one trade asset, one reward asset, one finite epoch. It is
// created once by the factory wiring and mutated in place for its whole
// lifetime; after the epoch ends it simply goes inert.
type Program struct {
	// StartTime is the unix timestamp fixing day 0.
	StartTime uint64
	// PreviousDays is the number of historical days the seed baseline is
	// deemed to represent.
	PreviousDays uint64
	// TotalDays is the length of the reward epoch in days.
	TotalDays uint64
	// BonusRateBps and PenaltyRateBps scale the per-day base allocation
	// when the day's volume lands at-or-above / below the baseline.
	BonusRateBps   uint64
	PenaltyRateBps uint64
	// DayLengthSeconds is a fixed 24h in production. Kept configurable so
	// tests can compress time.
	DayLengthSeconds uint64
	Owner            [20]byte
	// LastFinalizedDay is the highest day index whose baseline and reward
	// have been computed, -1 until day 0 finalizes.
	LastFinalizedDay int64
	// TotalRewardBalance is the undistributed pool. Only increases via
	// Deposit, only decreases via Claim.
	TotalRewardBalance *big.Int
	// DepositedReward fixes the per-day base allocation once funded.
	DepositedReward *big.Int
	// EmittedReward is the running sum of frozen daily rewards, used to
	// clamp emission to the deposited pool.
	EmittedReward *big.Int
	// RemainderSwept records whether the owner already withdrew the
	// unemitted remainder after the epoch ended.
	RemainderSwept bool
}

// Clone produces a deep copy so callers never alias the stored big.Ints.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalRewardBalance = copyBigInt(p.TotalRewardBalance)
	clone.DepositedReward = copyBigInt(p.DepositedReward)
	clone.EmittedReward = copyBigInt(p.EmittedReward)
	return &clone
}

// Funded reports whether the upfront deposit has been made.
func (p *Program) Funded() bool {
	return p != nil && p.DepositedReward != nil && p.DepositedReward.Sign() > 0
}

// Account tracks a single participant. Created lazily on first trade.
type Account struct {
	Address [20]byte
	// ClaimedThroughDay is the highest day index already paid out,
	// -1 until the first claim. Monotonically non-decreasing.
	ClaimedThroughDay int64
	// TotalVolume accumulates the participant's recorded volume across the
	// whole epoch. Diagnostic only; per-day records drive the payouts.
	TotalVolume *big.Int
}

// Clone produces a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.TotalVolume = copyBigInt(a.TotalVolume)
	return &clone
}

func copyBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
