package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"tradefarm/native/farming"
)

// Stored records carry big.Ints as decimal strings and signed day pointers
// offset by one, since RLP only encodes unsigned integers.
type storedProgram struct {
	StartTime            uint64
	PreviousDays         uint64
	TotalDays            uint64
	BonusRateBps         uint64
	PenaltyRateBps       uint64
	DayLengthSeconds     uint64
	Owner                []byte
	LastFinalizedPlusOne uint64
	TotalRewardBalance   string
	DepositedReward      string
	EmittedReward        string
	RemainderSwept       bool
}

type storedAccount struct {
	Address               []byte
	ClaimedThroughPlusOne uint64
	TotalVolume           string
}

func encodeProgram(p *farming.Program) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("state: nil program")
	}
	record := storedProgram{
		StartTime:            p.StartTime,
		PreviousDays:         p.PreviousDays,
		TotalDays:            p.TotalDays,
		BonusRateBps:         p.BonusRateBps,
		PenaltyRateBps:       p.PenaltyRateBps,
		DayLengthSeconds:     p.DayLengthSeconds,
		Owner:                append([]byte(nil), p.Owner[:]...),
		LastFinalizedPlusOne: uint64(p.LastFinalizedDay + 1),
		TotalRewardBalance:   bigString(p.TotalRewardBalance),
		DepositedReward:      bigString(p.DepositedReward),
		EmittedReward:        bigString(p.EmittedReward),
		RemainderSwept:       p.RemainderSwept,
	}
	return rlp.EncodeToBytes(&record)
}

func decodeProgram(raw []byte) (*farming.Program, error) {
	var record storedProgram
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return nil, fmt.Errorf("state: decode program: %w", err)
	}
	program := &farming.Program{
		StartTime:        record.StartTime,
		PreviousDays:     record.PreviousDays,
		TotalDays:        record.TotalDays,
		BonusRateBps:     record.BonusRateBps,
		PenaltyRateBps:   record.PenaltyRateBps,
		DayLengthSeconds: record.DayLengthSeconds,
		LastFinalizedDay: int64(record.LastFinalizedPlusOne) - 1,
		RemainderSwept:   record.RemainderSwept,
	}
	copy(program.Owner[:], record.Owner)
	var err error
	if program.TotalRewardBalance, err = parseBig(record.TotalRewardBalance); err != nil {
		return nil, err
	}
	if program.DepositedReward, err = parseBig(record.DepositedReward); err != nil {
		return nil, err
	}
	if program.EmittedReward, err = parseBig(record.EmittedReward); err != nil {
		return nil, err
	}
	return program, nil
}

func encodeAccount(a *farming.Account) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("state: nil account")
	}
	record := storedAccount{
		Address:               append([]byte(nil), a.Address[:]...),
		ClaimedThroughPlusOne: uint64(a.ClaimedThroughDay + 1),
		TotalVolume:           bigString(a.TotalVolume),
	}
	return rlp.EncodeToBytes(&record)
}

func decodeAccount(raw []byte) (*farming.Account, error) {
	var record storedAccount
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account := &farming.Account{
		ClaimedThroughDay: int64(record.ClaimedThroughPlusOne) - 1,
	}
	copy(account.Address[:], record.Address)
	var err error
	if account.TotalVolume, err = parseBig(record.TotalVolume); err != nil {
		return nil, err
	}
	return account, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("state: malformed amount %q", raw)
	}
	return value, nil
}
