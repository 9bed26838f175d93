package farming

import "math/big"

// State describes the minimal functionality the farming engine needs from
// the surrounding state implementation. Every mutation performed through it
// must be atomic with the enclosing external operation: either all effects
// land or none do.
type State interface {
	FarmingProgram() (*Program, error)
	PutFarmingProgram(program *Program) error

	FarmingAccount(addr [20]byte) (*Account, error)
	PutFarmingAccount(account *Account) error

	// Per-day aggregates. Reads for unrecorded days return 0.
	FarmingDailyVolume(day int64) (*big.Int, error)
	SetFarmingDailyVolume(day int64, amount *big.Int) error
	FarmingPreviousVolume(day int64) (*big.Int, error)
	SetFarmingPreviousVolume(day int64, amount *big.Int) error
	FarmingDailyReward(day int64) (*big.Int, error)
	SetFarmingDailyReward(day int64, amount *big.Int) error

	// Per-participant-per-day volume records.
	FarmingVolumeRecord(addr [20]byte, day int64) (*big.Int, error)
	SetFarmingVolumeRecord(addr [20]byte, day int64, amount *big.Int) error

	// Trade dedupe markers for at-least-once proxy feeds.
	FarmingTradeSeen(tradeID string) (bool, error)
	MarkFarmingTradeSeen(tradeID string) error

	AppendEvent(evt *Event)
}

// Token abstracts the fungible-balance custodian holding the reward asset.
// Implementations must report shortfalls as errors so the enclosing
// operation rolls back.
type Token interface {
	TransferIn(from [20]byte, amount *big.Int) error
	TransferOut(to [20]byte, amount *big.Int) error
}
