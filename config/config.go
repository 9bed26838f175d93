// Package config loads the TOML configuration for the tradefarmd service.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level service configuration.
type Config struct {
	ListenAddress  string  `toml:"ListenAddress"`
	DataDir        string  `toml:"DataDir"`
	Environment    string  `toml:"Environment"`
	OwnerAddress   string  `toml:"OwnerAddress"`
	OwnerJWTSecret string  `toml:"OwnerJWTSecret"`
	Program        Program `toml:"Program"`
	Log            Log     `toml:"Log"`
	Telemetry      Telemetry
	RateLimit      RateLimit
}

// Program carries the campaign parameters used to initialise the ledger on
// first boot. Amounts are decimal strings in the reward asset's smallest
// unit.
type Program struct {
	StartTime        int64  `toml:"StartTime"`
	PreviousVolume   string `toml:"PreviousVolume"`
	PreviousDays     uint64 `toml:"PreviousDays"`
	TotalDays        uint64 `toml:"TotalDays"`
	BonusRateBps     uint64 `toml:"BonusRateBps"`
	PenaltyRateBps   uint64 `toml:"PenaltyRateBps"`
	DayLengthSeconds uint64 `toml:"DayLengthSeconds"`
}

// Log controls the optional rotated file sink.
type Log struct {
	Path       string `toml:"Path"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry holds the OTLP exporter settings.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// RateLimit bounds the per-client request rate on the trade ingestion route.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = "127.0.0.1:8642"
	}
	if c.DataDir == "" {
		c.DataDir = "./tradefarm-data"
	}
	if c.Program.PreviousVolume == "" {
		c.Program.PreviousVolume = "0"
	}
	if c.Program.DayLengthSeconds == 0 {
		c.Program.DayLengthSeconds = 86_400
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 600
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 100
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
