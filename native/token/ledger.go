// Package token implements the fungible-balance custodian backing the
// farming reward pool. The farming engine never touches balances directly;
// it goes through the Vault, which keeps the pool's funds under a dedicated
// module account.
package token

import (
	"errors"
	"math/big"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
)

// PoolAddress is the module account that owns the undistributed reward pool.
var PoolAddress = [20]byte{'t', 'r', 'a', 'd', 'e', 'f', 'a', 'r', 'm', '/', 'p', 'o', 'o', 'l'}

// State describes the balance storage the ledger operates over. Reads for
// unknown addresses return 0.
type State interface {
	TokenBalance(addr [20]byte) (*big.Int, error)
	SetTokenBalance(addr [20]byte, amount *big.Int) error
}

// BalanceOf returns the current balance for an address.
func BalanceOf(st State, addr [20]byte) (*big.Int, error) {
	if st == nil {
		return nil, errors.New("token: nil state")
	}
	return st.TokenBalance(addr)
}

// Mint credits freshly issued units to an address. Used by genesis funding
// and tests; there is no burn path in this module.
func Mint(st State, addr [20]byte, amount *big.Int) error {
	if st == nil {
		return errors.New("token: nil state")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := st.TokenBalance(addr)
	if err != nil {
		return err
	}
	return st.SetTokenBalance(addr, new(big.Int).Add(balance, amount))
}

// Transfer moves amount between two addresses, failing atomically on any
// shortfall.
func Transfer(st State, from, to [20]byte, amount *big.Int) error {
	if st == nil {
		return errors.New("token: nil state")
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := st.TokenBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer must not double-count the stale destination read.
	if from == to {
		return nil
	}
	toBalance, err := st.TokenBalance(to)
	if err != nil {
		return err
	}
	if err := st.SetTokenBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return st.SetTokenBalance(to, new(big.Int).Add(toBalance, amount))
}

// Vault binds the ledger to the pool account for one state transaction. It
// satisfies the farming engine's custodian interface: TransferIn pulls the
// deposit from the funder, TransferOut pays claims from the pool.
type Vault struct {
	st   State
	pool [20]byte
}

// NewVault constructs a vault over the supplied state. A zero pool address
// falls back to the module account.
func NewVault(st State, pool [20]byte) *Vault {
	if pool == ([20]byte{}) {
		pool = PoolAddress
	}
	return &Vault{st: st, pool: pool}
}

func (v *Vault) TransferIn(from [20]byte, amount *big.Int) error {
	return Transfer(v.st, from, v.pool, amount)
}

func (v *Vault) TransferOut(to [20]byte, amount *big.Int) error {
	return Transfer(v.st, v.pool, to, amount)
}
