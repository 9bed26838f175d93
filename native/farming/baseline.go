package farming

import "math/big"

// nextBaseline computes previousVolumes[day+1] from the baseline in force
// during the day and the day's recorded volume:
//
//	ceil((prev*(N0+day) + daily) / (N0+day+1))
//
// The running-average denominator grows by one finalized day at a time,
// starting from the PreviousDays worth of history the seed represents.
// Rounding is upward, in favour of the baseline.
func nextBaseline(previousDays uint64, day int64, prev, daily *big.Int) *big.Int {
	weight := new(big.Int).SetUint64(previousDays)
	weight.Add(weight, big.NewInt(day))
	numerator := new(big.Int).Mul(copyBigInt(prev), weight)
	numerator.Add(numerator, copyBigInt(daily))
	denominator := new(big.Int).Add(weight, big.NewInt(1))
	return ceilDiv(numerator, denominator)
}

// ceilDiv returns ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b *big.Int) *big.Int {
	quotient, remainder := new(big.Int).QuoRem(a, b, new(big.Int))
	if remainder.Sign() > 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}
