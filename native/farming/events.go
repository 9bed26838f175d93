package farming

import (
	"encoding/hex"
	"math/big"
	"strconv"
)

// Event types appended to state as operations apply.
const (
	EventTradeRecorded = "farming.trade.recorded"
	EventTradeSkipped  = "farming.trade.skipped"
	EventDayFinalized  = "farming.day.finalized"
	EventPoolDeposited = "farming.pool.deposited"
	EventRewardClaimed = "farming.reward.claimed"
)

// Event is the loosely-typed record emitted for external observers. The
// attribute map keeps the wire shape stable while individual events evolve.
type Event struct {
	Type       string
	Attributes map[string]string
}

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newTradeRecordedEvent(addr [20]byte, day int64, amount *big.Int) *Event {
	return &Event{
		Type: EventTradeRecorded,
		Attributes: map[string]string{
			"account": hex.EncodeToString(addr[:]),
			"day":     strconv.FormatInt(day, 10),
			"amount":  bigAttr(amount),
		},
	}
}

func newTradeSkippedEvent(addr [20]byte, day int64, amount *big.Int, reason string) *Event {
	return &Event{
		Type: EventTradeSkipped,
		Attributes: map[string]string{
			"account": hex.EncodeToString(addr[:]),
			"day":     strconv.FormatInt(day, 10),
			"amount":  bigAttr(amount),
			"reason":  reason,
		},
	}
}

func newDayFinalizedEvent(day int64, volume, baseline, reward *big.Int) *Event {
	return &Event{
		Type: EventDayFinalized,
		Attributes: map[string]string{
			"day":      strconv.FormatInt(day, 10),
			"volume":   bigAttr(volume),
			"baseline": bigAttr(baseline),
			"reward":   bigAttr(reward),
		},
	}
}

func newPoolDepositedEvent(owner [20]byte, amount, balance *big.Int) *Event {
	return &Event{
		Type: EventPoolDeposited,
		Attributes: map[string]string{
			"owner":   hex.EncodeToString(owner[:]),
			"amount":  bigAttr(amount),
			"balance": bigAttr(balance),
		},
	}
}

func newRewardClaimedEvent(addr [20]byte, amount *big.Int, throughDay int64) *Event {
	return &Event{
		Type: EventRewardClaimed,
		Attributes: map[string]string{
			"account":    hex.EncodeToString(addr[:]),
			"amount":     bigAttr(amount),
			"throughDay": strconv.FormatInt(throughDay, 10),
		},
	}
}
