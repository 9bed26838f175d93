package farming

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// RateBpsDenominator defines the fixed denominator for the bonus and
	// penalty multipliers.
	RateBpsDenominator = 10_000
	// DefaultBonusRateBps scales a day's base allocation up by 10% when
	// volume meets the baseline.
	DefaultBonusRateBps = 11_000
	// DefaultPenaltyRateBps scales a day's base allocation down by 10% when
	// volume falls short of the baseline.
	DefaultPenaltyRateBps = 9_000
	// DefaultDayLength is the production day granularity.
	DefaultDayLength = 24 * time.Hour
)

// Params carries the immutable campaign configuration supplied at program
// creation.
type Params struct {
	StartTime      time.Time
	PreviousVolume *big.Int
	PreviousDays   uint64
	TotalDays      uint64
	BonusRateBps   uint64
	PenaltyRateBps uint64
	DayLength      time.Duration
	Owner          [20]byte
}

// ApplyDefaults fills unset rate and day-length fields with module defaults.
func (p *Params) ApplyDefaults() *Params {
	if p == nil {
		return nil
	}
	if p.BonusRateBps == 0 {
		p.BonusRateBps = DefaultBonusRateBps
	}
	if p.PenaltyRateBps == 0 {
		p.PenaltyRateBps = DefaultPenaltyRateBps
	}
	if p.DayLength == 0 {
		p.DayLength = DefaultDayLength
	}
	return p
}

// Validate ensures the configuration is internally consistent before a
// program record is written.
func (p Params) Validate() error {
	if p.StartTime.IsZero() {
		return errors.New("farming: start time required")
	}
	if p.TotalDays == 0 {
		return errors.New("farming: total days must be positive")
	}
	if p.PreviousDays == 0 {
		return errors.New("farming: previous days must be positive")
	}
	if p.PreviousVolume == nil || p.PreviousVolume.Sign() < 0 {
		return errors.New("farming: previous volume seed cannot be negative")
	}
	if p.BonusRateBps < RateBpsDenominator {
		return fmt.Errorf("farming: bonus rate must be >= %d bps", RateBpsDenominator)
	}
	if p.PenaltyRateBps > RateBpsDenominator {
		return fmt.Errorf("farming: penalty rate must be <= %d bps", RateBpsDenominator)
	}
	if p.DayLength <= 0 {
		return errors.New("farming: day length must be positive")
	}
	if p.Owner == ([20]byte{}) {
		return errors.New("farming: owner address required")
	}
	return nil
}

// NewProgram materialises the program record for validated parameters.
func NewProgram(p Params) (*Program, error) {
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Program{
		StartTime:          uint64(p.StartTime.Unix()),
		PreviousDays:       p.PreviousDays,
		TotalDays:          p.TotalDays,
		BonusRateBps:       p.BonusRateBps,
		PenaltyRateBps:     p.PenaltyRateBps,
		DayLengthSeconds:   uint64(p.DayLength / time.Second),
		Owner:              p.Owner,
		LastFinalizedDay:   -1,
		TotalRewardBalance: big.NewInt(0),
		DepositedReward:    big.NewInt(0),
		EmittedReward:      big.NewInt(0),
	}, nil
}
