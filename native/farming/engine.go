package farming

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"tradefarm/observability/metrics"
)

// Trade skip reasons surfaced through events and telemetry.
const (
	skipReasonEpochClosed = "epoch_closed"
	skipReasonDuplicate   = "duplicate_trade"
	skipReasonZeroAmount  = "zero_amount"
	skipReasonStale       = "stale_trade"
)

// ErrEpochActive guards owner operations that only make sense once every
// epoch day has been finalized.
var ErrEpochActive = errors.New("farming: epoch still active")

// TradeContext captures the metadata reported by the trade-execution proxy
// for a completed trade.
type TradeContext struct {
	// TradeID deduplicates replayed deliveries from an at-least-once feed.
	// Empty disables the check.
	TradeID   string
	Account   [20]byte
	Amount    *big.Int
	Timestamp time.Time
}

func (ctx *TradeContext) amountValue() *big.Int {
	if ctx == nil || ctx.Amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(ctx.Amount)
}

// Engine implements the trade-farming ledger over an externally supplied
// State. It holds no ledger state of its own; the caller provides the state
// handle per operation and guarantees the single-writer, all-or-nothing
// transaction discipline around each call.
type Engine struct {
	telemetry *metrics.FarmingMetrics
}

// NewEngine constructs the engine with the process-wide telemetry registry.
func NewEngine() *Engine {
	return &Engine{telemetry: metrics.Farming()}
}

// InitProgram validates the campaign parameters, writes the program record,
// and seeds the baseline series. Exactly one program may exist per state.
func (e *Engine) InitProgram(st State, params Params) (*Program, error) {
	if st == nil {
		return nil, fmt.Errorf("farming: nil state")
	}
	existing, err := st.FarmingProgram()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrProgramExists
	}
	program, err := NewProgram(params)
	if err != nil {
		return nil, err
	}
	if err := st.PutFarmingProgram(program); err != nil {
		return nil, err
	}
	if err := st.SetFarmingPreviousVolume(0, params.PreviousVolume); err != nil {
		return nil, err
	}
	return program.Clone(), nil
}

// ObserveTrade is the combined atomic operation fired for every completed
// trade: it first catches up finalization for every elapsed day, then
// records the trade's volume against the participant and the open day.
// Trades past the epoch end are dropped silently, matching the designed
// wind-down behaviour; so are trades whose timestamp falls before the
// program start or inside an already-finalized day.
func (e *Engine) ObserveTrade(st State, ctx *TradeContext) error {
	if st == nil || ctx == nil {
		return fmt.Errorf("farming: nil trade context")
	}
	program, err := st.FarmingProgram()
	if err != nil {
		return err
	}
	if program == nil {
		return ErrProgramNotFound
	}
	if ctx.Amount != nil && ctx.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if ctx.TradeID != "" {
		seen, err := st.FarmingTradeSeen(ctx.TradeID)
		if err != nil {
			return err
		}
		if seen {
			day := ClockFor(program).CurrentDay(ctx.Timestamp)
			st.AppendEvent(newTradeSkippedEvent(ctx.Account, day, ctx.amountValue(), skipReasonDuplicate))
			e.telemetry.ObserveTradeSkipped(skipReasonDuplicate)
			return nil
		}
		if err := st.MarkFarmingTradeSeen(ctx.TradeID); err != nil {
			return err
		}
	}
	if err := e.finalizeThrough(st, program, ctx.Timestamp); err != nil {
		return err
	}

	clock := ClockFor(program)
	day := clock.CurrentDay(ctx.Timestamp)
	amount := ctx.amountValue()
	switch {
	case ctx.Timestamp.Before(clock.Start), day <= program.LastFinalizedDay:
		// Finalized days are frozen; volume attributed to one would break
		// the conservation accounting behind already-paid claims.
		st.AppendEvent(newTradeSkippedEvent(ctx.Account, day, amount, skipReasonStale))
		e.telemetry.ObserveTradeSkipped(skipReasonStale)
	case day >= int64(program.TotalDays):
		st.AppendEvent(newTradeSkippedEvent(ctx.Account, day, amount, skipReasonEpochClosed))
		e.telemetry.ObserveTradeSkipped(skipReasonEpochClosed)
	case amount.Sign() == 0:
		st.AppendEvent(newTradeSkippedEvent(ctx.Account, day, amount, skipReasonZeroAmount))
		e.telemetry.ObserveTradeSkipped(skipReasonZeroAmount)
	default:
		if err := e.recordVolume(st, ctx.Account, day, amount); err != nil {
			return err
		}
		st.AppendEvent(newTradeRecordedEvent(ctx.Account, day, amount))
		e.telemetry.ObserveTradeRecorded()
	}
	return st.PutFarmingProgram(program)
}

func (e *Engine) recordVolume(st State, addr [20]byte, day int64, amount *big.Int) error {
	record, err := st.FarmingVolumeRecord(addr, day)
	if err != nil {
		return err
	}
	if err := st.SetFarmingVolumeRecord(addr, day, new(big.Int).Add(record, amount)); err != nil {
		return err
	}
	daily, err := st.FarmingDailyVolume(day)
	if err != nil {
		return err
	}
	if err := st.SetFarmingDailyVolume(day, new(big.Int).Add(daily, amount)); err != nil {
		return err
	}
	account, err := st.FarmingAccount(addr)
	if err != nil {
		return err
	}
	if account == nil {
		account = &Account{Address: addr, ClaimedThroughDay: -1, TotalVolume: big.NewInt(0)}
	}
	account.TotalVolume = new(big.Int).Add(copyBigInt(account.TotalVolume), amount)
	return st.PutFarmingAccount(account)
}

// finalizeThrough runs the bounded catch-up loop: every day strictly between
// lastFinalizedDay and currentDay is finalized in order, stopping at the
// epoch end. Zero-volume days are valid, financeable days.
func (e *Engine) finalizeThrough(st State, program *Program, now time.Time) error {
	clock := ClockFor(program)
	current := clock.CurrentDay(now)
	target := current - 1
	if maxDay := int64(program.TotalDays) - 1; target > maxDay {
		target = maxDay
	}
	if lag := target - program.LastFinalizedDay; lag > 0 {
		e.telemetry.SetFinalizationLag(float64(lag))
	} else {
		e.telemetry.SetFinalizationLag(0)
	}
	for day := program.LastFinalizedDay + 1; day <= target; day++ {
		daily, err := st.FarmingDailyVolume(day)
		if err != nil {
			return err
		}
		baseline, err := st.FarmingPreviousVolume(day)
		if err != nil {
			return err
		}
		reward := dayReward(program, daily, baseline)
		if err := st.SetFarmingDailyReward(day, reward); err != nil {
			return err
		}
		program.EmittedReward = new(big.Int).Add(copyBigInt(program.EmittedReward), reward)

		next := nextBaseline(program.PreviousDays, day, baseline, daily)
		if err := st.SetFarmingPreviousVolume(day+1, next); err != nil {
			return err
		}
		program.LastFinalizedDay = day
		st.AppendEvent(newDayFinalizedEvent(day, daily, baseline, reward))
		reward64, _ := new(big.Float).SetInt(reward).Float64()
		e.telemetry.ObserveDayFinalized(day, reward64)
	}
	return nil
}

// Deposit funds the reward pool. Owner-only, single upfront event: the
// deposited amount fixes the per-day base allocation for the whole epoch.
func (e *Engine) Deposit(st State, tok Token, caller [20]byte, amount *big.Int, now time.Time) error {
	if st == nil {
		return fmt.Errorf("farming: nil state")
	}
	program, err := st.FarmingProgram()
	if err != nil {
		return err
	}
	if program == nil {
		return ErrProgramNotFound
	}
	if caller != program.Owner {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if program.Funded() {
		return ErrAlreadyFunded
	}
	if err := e.finalizeThrough(st, program, now); err != nil {
		return err
	}
	if tok == nil {
		return ErrCollaboratorFailure
	}
	if err := tok.TransferIn(caller, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrCollaboratorFailure, err)
	}
	program.DepositedReward = new(big.Int).Set(amount)
	program.TotalRewardBalance = new(big.Int).Add(copyBigInt(program.TotalRewardBalance), amount)
	if err := st.PutFarmingProgram(program); err != nil {
		return err
	}
	st.AppendEvent(newPoolDepositedEvent(program.Owner, amount, program.TotalRewardBalance))
	balance64, _ := new(big.Float).SetInt(program.TotalRewardBalance).Float64()
	e.telemetry.SetPoolBalance(balance64)
	return nil
}

// Claimable sums the participant's pro-rata shares across all finalized,
// not-yet-claimed days. Read-only: it neither finalizes days nor advances
// the claim pointer, and an empty result is 0, not an error.
func (e *Engine) Claimable(st State, addr [20]byte) (*big.Int, error) {
	if st == nil {
		return nil, fmt.Errorf("farming: nil state")
	}
	program, err := st.FarmingProgram()
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrProgramNotFound
	}
	account, err := st.FarmingAccount(addr)
	if err != nil {
		return nil, err
	}
	from := int64(-1)
	if account != nil {
		from = account.ClaimedThroughDay
	}
	return e.sumShares(st, addr, from, program.LastFinalizedDay)
}

func (e *Engine) sumShares(st State, addr [20]byte, claimedThrough, lastFinalized int64) (*big.Int, error) {
	total := big.NewInt(0)
	for day := claimedThrough + 1; day <= lastFinalized; day++ {
		daily, err := st.FarmingDailyVolume(day)
		if err != nil {
			return nil, err
		}
		if daily.Sign() <= 0 {
			continue
		}
		record, err := st.FarmingVolumeRecord(addr, day)
		if err != nil {
			return nil, err
		}
		if record.Sign() <= 0 {
			continue
		}
		reward, err := st.FarmingDailyReward(day)
		if err != nil {
			return nil, err
		}
		total.Add(total, proRataShare(reward, record, daily))
	}
	return total, nil
}

// Claim finalizes any elapsed days, pays out the participant's accumulated
// share through the custodian, and advances the claim pointer. Idempotent:
// an immediate second call pays 0 and performs no transfer.
func (e *Engine) Claim(st State, tok Token, addr [20]byte, now time.Time) (*big.Int, error) {
	if st == nil {
		return nil, fmt.Errorf("farming: nil state")
	}
	program, err := st.FarmingProgram()
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrProgramNotFound
	}
	if err := e.finalizeThrough(st, program, now); err != nil {
		return nil, err
	}
	account, err := st.FarmingAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &Account{Address: addr, ClaimedThroughDay: -1, TotalVolume: big.NewInt(0)}
	}
	amount, err := e.sumShares(st, addr, account.ClaimedThroughDay, program.LastFinalizedDay)
	if err != nil {
		return nil, err
	}
	if amount.Sign() > 0 {
		if program.TotalRewardBalance == nil || program.TotalRewardBalance.Cmp(amount) < 0 {
			return nil, ErrInsufficientPool
		}
		if tok == nil {
			return nil, ErrCollaboratorFailure
		}
		if err := tok.TransferOut(addr, amount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCollaboratorFailure, err)
		}
		program.TotalRewardBalance = new(big.Int).Sub(program.TotalRewardBalance, amount)
		st.AppendEvent(newRewardClaimedEvent(addr, amount, program.LastFinalizedDay))
		e.telemetry.ObserveClaimPaid()
		balance64, _ := new(big.Float).SetInt(program.TotalRewardBalance).Float64()
		e.telemetry.SetPoolBalance(balance64)
	}
	if program.LastFinalizedDay > account.ClaimedThroughDay {
		account.ClaimedThroughDay = program.LastFinalizedDay
		if err := st.PutFarmingAccount(account); err != nil {
			return nil, err
		}
	}
	if err := st.PutFarmingProgram(program); err != nil {
		return nil, err
	}
	return amount, nil
}

// SweepRemainder lets the owner withdraw the unemitted slice of the deposit
// once every epoch day has been finalized. Penalty days emit less than the
// even split, so a remainder is expected; sweeping it keeps the pool exactly
// coverable by outstanding claims. Idempotent after the first sweep.
func (e *Engine) SweepRemainder(st State, tok Token, caller [20]byte, now time.Time) (*big.Int, error) {
	if st == nil {
		return nil, fmt.Errorf("farming: nil state")
	}
	program, err := st.FarmingProgram()
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrProgramNotFound
	}
	if caller != program.Owner {
		return nil, ErrUnauthorized
	}
	if err := e.finalizeThrough(st, program, now); err != nil {
		return nil, err
	}
	if program.LastFinalizedDay < int64(program.TotalDays)-1 {
		return nil, ErrEpochActive
	}
	if program.RemainderSwept {
		return big.NewInt(0), nil
	}
	remainder := new(big.Int).Sub(copyBigInt(program.DepositedReward), copyBigInt(program.EmittedReward))
	if remainder.Sign() > 0 {
		if tok == nil {
			return nil, ErrCollaboratorFailure
		}
		if err := tok.TransferOut(caller, remainder); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCollaboratorFailure, err)
		}
		program.TotalRewardBalance = new(big.Int).Sub(copyBigInt(program.TotalRewardBalance), remainder)
	}
	program.RemainderSwept = true
	if err := st.PutFarmingProgram(program); err != nil {
		return nil, err
	}
	return remainder, nil
}

// CalcDay resolves the current day index for the program clock.
func (e *Engine) CalcDay(st State, now time.Time) (int64, error) {
	program, err := requireProgram(st)
	if err != nil {
		return 0, err
	}
	return ClockFor(program).CurrentDay(now), nil
}

// IsCaughtUp reports whether every elapsed day (bounded by the epoch end)
// has been finalized. It flips false the instant the wall clock crosses a
// day boundary and true again after the next mutating call catches up.
func (e *Engine) IsCaughtUp(st State, now time.Time) (bool, error) {
	program, err := requireProgram(st)
	if err != nil {
		return false, err
	}
	target := ClockFor(program).CurrentDay(now) - 1
	if maxDay := int64(program.TotalDays) - 1; target > maxDay {
		target = maxDay
	}
	return program.LastFinalizedDay >= target, nil
}

// DailyVolume returns the aggregate volume recorded on a day. Out-of-range
// days read as 0 rather than failing, matching the wind-down behaviour.
func (e *Engine) DailyVolume(st State, day int64) (*big.Int, error) {
	program, err := requireProgram(st)
	if err != nil {
		return nil, err
	}
	if day < 0 || day >= int64(program.TotalDays) {
		return big.NewInt(0), nil
	}
	return st.FarmingDailyVolume(day)
}

// PreviousVolume returns the baseline in force for a day; defined on
// [0, totalDays], 0 beyond.
func (e *Engine) PreviousVolume(st State, day int64) (*big.Int, error) {
	program, err := requireProgram(st)
	if err != nil {
		return nil, err
	}
	if day < 0 || day > int64(program.TotalDays) {
		return big.NewInt(0), nil
	}
	return st.FarmingPreviousVolume(day)
}

// DailyReward returns the frozen emission for a finalized day, 0 for
// unfinalized or out-of-range days.
func (e *Engine) DailyReward(st State, day int64) (*big.Int, error) {
	program, err := requireProgram(st)
	if err != nil {
		return nil, err
	}
	if day < 0 || day >= int64(program.TotalDays) {
		return big.NewInt(0), nil
	}
	return st.FarmingDailyReward(day)
}

// VolumeRecord returns one participant's recorded volume on a day.
func (e *Engine) VolumeRecord(st State, addr [20]byte, day int64) (*big.Int, error) {
	program, err := requireProgram(st)
	if err != nil {
		return nil, err
	}
	if day < 0 || day >= int64(program.TotalDays) {
		return big.NewInt(0), nil
	}
	return st.FarmingVolumeRecord(addr, day)
}

// TotalRewardBalance returns the undistributed pool balance.
func (e *Engine) TotalRewardBalance(st State) (*big.Int, error) {
	program, err := requireProgram(st)
	if err != nil {
		return nil, err
	}
	return copyBigInt(program.TotalRewardBalance), nil
}

func requireProgram(st State) (*Program, error) {
	if st == nil {
		return nil, fmt.Errorf("farming: nil state")
	}
	program, err := st.FarmingProgram()
	if err != nil {
		return nil, err
	}
	if program == nil {
		return nil, ErrProgramNotFound
	}
	return program, nil
}
