package state

import (
	"encoding/hex"
	"fmt"
)

// Key layout for the persisted ledger. Everything lives under two prefixes:
// the farming program schema and the token balance schema. Day-indexed keys
// embed the decimal day so the layout stays human-inspectable in the KV
// store.
var programKey = []byte("farming/program")

func accountKey(addr [20]byte) []byte {
	return []byte("farming/account/" + hex.EncodeToString(addr[:]))
}

func dailyVolumeKey(day int64) []byte {
	return []byte(fmt.Sprintf("farming/daily/%d", day))
}

func previousVolumeKey(day int64) []byte {
	return []byte(fmt.Sprintf("farming/prev/%d", day))
}

func dailyRewardKey(day int64) []byte {
	return []byte(fmt.Sprintf("farming/reward/%d", day))
}

func volumeRecordKey(addr [20]byte, day int64) []byte {
	return []byte(fmt.Sprintf("farming/vol/%s/%d", hex.EncodeToString(addr[:]), day))
}

func tradeSeenKey(tradeID string) []byte {
	return []byte("farming/trade/" + tradeID)
}

func tokenBalanceKey(addr [20]byte) []byte {
	return []byte("token/balance/" + hex.EncodeToString(addr[:]))
}
