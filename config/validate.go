package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Validate checks the loaded configuration before the service boots.
// Program parameters are only required once the operator actually sets them;
// a default file created on first boot validates clean so the operator can
// fill it in.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return errors.New("config: listen address required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data dir required")
	}
	if c.OwnerAddress != "" {
		if _, err := ParseAddress(c.OwnerAddress); err != nil {
			return fmt.Errorf("config: owner address: %w", err)
		}
	}
	if c.Program.PreviousVolume != "" {
		if _, ok := new(big.Int).SetString(c.Program.PreviousVolume, 10); !ok {
			return fmt.Errorf("config: malformed previous volume %q", c.Program.PreviousVolume)
		}
	}
	if c.Program.TotalDays > 0 && c.Program.StartTime == 0 {
		return errors.New("config: program start time required")
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address, with or without an 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes (got %d)", len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}
