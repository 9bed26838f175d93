// Package state persists the farming ledger in a key-value store and
// enforces the serialized, all-or-nothing transaction model the engine
// expects: one external operation at a time, with every mutation buffered in
// an overlay that only reaches the backend when the operation succeeds.
package state

import (
	"math/big"
	"sort"
	"sync"

	"tradefarm/native/farming"
	"tradefarm/storage"
)

// Manager owns the database handle and the single-writer lock.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager creates a state manager over the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn inside a mutating transaction. When fn returns nil every
// buffered write is flushed to the backend and the collected events are
// returned; on error nothing is persisted.
func (m *Manager) Update(fn func(txn *Txn) error) ([]farming.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn := newTxn(m.db)
	if err := fn(txn); err != nil {
		return nil, err
	}
	if err := txn.flush(); err != nil {
		return nil, err
	}
	return txn.events, nil
}

// View runs fn against a read snapshot. Writes made through the transaction
// are discarded, which also lets read paths reuse the same helpers.
func (m *Manager) View(fn func(txn *Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(newTxn(m.db))
}

// Txn is one buffered state transaction. It satisfies both the farming
// engine's State interface and the token ledger's State interface so a
// single external call can touch the ledger and balances atomically.
type Txn struct {
	db      storage.Database
	overlay map[string][]byte
	events  []farming.Event
}

func newTxn(db storage.Database) *Txn {
	return &Txn{db: db, overlay: make(map[string][]byte)}
}

func (t *Txn) get(key []byte) ([]byte, bool, error) {
	if value, ok := t.overlay[string(key)]; ok {
		return value, true, nil
	}
	value, err := t.db.Get(key)
	if err == storage.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *Txn) put(key, value []byte) {
	t.overlay[string(key)] = append([]byte(nil), value...)
}

func (t *Txn) flush() error {
	keys := make([]string, 0, len(t.overlay))
	for key := range t.overlay {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := t.db.Put([]byte(key), t.overlay[key]); err != nil {
			return err
		}
	}
	return nil
}

// --- farming.State ---

func (t *Txn) FarmingProgram() (*farming.Program, error) {
	raw, ok, err := t.get(programKey)
	if err != nil || !ok {
		return nil, err
	}
	return decodeProgram(raw)
}

func (t *Txn) PutFarmingProgram(program *farming.Program) error {
	raw, err := encodeProgram(program)
	if err != nil {
		return err
	}
	t.put(programKey, raw)
	return nil
}

func (t *Txn) FarmingAccount(addr [20]byte) (*farming.Account, error) {
	raw, ok, err := t.get(accountKey(addr))
	if err != nil || !ok {
		return nil, err
	}
	return decodeAccount(raw)
}

func (t *Txn) PutFarmingAccount(account *farming.Account) error {
	raw, err := encodeAccount(account)
	if err != nil {
		return err
	}
	t.put(accountKey(account.Address), raw)
	return nil
}

func (t *Txn) FarmingDailyVolume(day int64) (*big.Int, error) {
	return t.getAmount(dailyVolumeKey(day))
}

func (t *Txn) SetFarmingDailyVolume(day int64, amount *big.Int) error {
	return t.putAmount(dailyVolumeKey(day), amount)
}

func (t *Txn) FarmingPreviousVolume(day int64) (*big.Int, error) {
	return t.getAmount(previousVolumeKey(day))
}

func (t *Txn) SetFarmingPreviousVolume(day int64, amount *big.Int) error {
	return t.putAmount(previousVolumeKey(day), amount)
}

func (t *Txn) FarmingDailyReward(day int64) (*big.Int, error) {
	return t.getAmount(dailyRewardKey(day))
}

func (t *Txn) SetFarmingDailyReward(day int64, amount *big.Int) error {
	return t.putAmount(dailyRewardKey(day), amount)
}

func (t *Txn) FarmingVolumeRecord(addr [20]byte, day int64) (*big.Int, error) {
	return t.getAmount(volumeRecordKey(addr, day))
}

func (t *Txn) SetFarmingVolumeRecord(addr [20]byte, day int64, amount *big.Int) error {
	return t.putAmount(volumeRecordKey(addr, day), amount)
}

func (t *Txn) FarmingTradeSeen(tradeID string) (bool, error) {
	_, ok, err := t.get(tradeSeenKey(tradeID))
	return ok, err
}

func (t *Txn) MarkFarmingTradeSeen(tradeID string) error {
	t.put(tradeSeenKey(tradeID), []byte{1})
	return nil
}

func (t *Txn) AppendEvent(evt *farming.Event) {
	if evt == nil {
		return
	}
	t.events = append(t.events, *evt)
}

// --- token.State ---

func (t *Txn) TokenBalance(addr [20]byte) (*big.Int, error) {
	return t.getAmount(tokenBalanceKey(addr))
}

func (t *Txn) SetTokenBalance(addr [20]byte, amount *big.Int) error {
	return t.putAmount(tokenBalanceKey(addr), amount)
}

func (t *Txn) getAmount(key []byte) (*big.Int, error) {
	raw, ok, err := t.get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseBig(string(raw))
}

func (t *Txn) putAmount(key []byte, amount *big.Int) error {
	t.put(key, []byte(bigString(amount)))
	return nil
}
