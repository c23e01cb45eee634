// Package config loads the efile CLI configuration from an optional TOML
// file layered over defaults.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the runtime configuration for the efile command.
type Config struct {
	// Transmitter identity.
	ETIN       string
	EFIN       string
	Secret     string
	SoftwareID string

	// Storage backend: "memory", "sqlite" or "postgres".
	Storage     string
	SQLitePath  string
	PostgresDSN string
	// Hex-encoded 32-byte key; when set, records are encrypted at rest.
	SealKeyHex string

	// Acknowledgment polling.
	PollAttempts   int
	PollIntervalMS int

	// Simulation tuning.
	SimAckAfterPolls int
	SimRejectNth     int
}

// fileConfig is the TOML key mapping.
type fileConfig struct {
	ETIN             string `toml:"etin"`
	EFIN             string `toml:"efin"`
	Secret           string `toml:"secret"`
	SoftwareID       string `toml:"software_id"`
	Storage          string `toml:"storage"`
	SQLitePath       string `toml:"sqlite_path"`
	PostgresDSN      string `toml:"postgres_dsn"`
	SealKeyHex       string `toml:"seal_key"`
	PollAttempts     int    `toml:"poll_attempts"`
	PollIntervalMS   int    `toml:"poll_interval_ms"`
	SimAckAfterPolls int    `toml:"sim_ack_after_polls"`
	SimRejectNth     int    `toml:"sim_reject_nth"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ETIN:             "98765",
		EFIN:             "123456",
		Secret:           "dev-secret",
		SoftwareID:       "ustaxes-efile",
		Storage:          "memory",
		SQLitePath:       "efile.db",
		PollAttempts:     10,
		PollIntervalMS:   2000,
		SimAckAfterPolls: 2,
	}
}

// Load reads a TOML config file, overlaying only the keys it defines onto
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load efile config: %w", err)
	}
	if meta.IsDefined("etin") {
		cfg.ETIN = strings.TrimSpace(raw.ETIN)
	}
	if meta.IsDefined("efin") {
		cfg.EFIN = strings.TrimSpace(raw.EFIN)
	}
	if meta.IsDefined("secret") {
		cfg.Secret = raw.Secret
	}
	if meta.IsDefined("software_id") {
		cfg.SoftwareID = strings.TrimSpace(raw.SoftwareID)
	}
	if meta.IsDefined("storage") {
		cfg.Storage = strings.TrimSpace(raw.Storage)
	}
	if meta.IsDefined("sqlite_path") {
		cfg.SQLitePath = strings.TrimSpace(raw.SQLitePath)
	}
	if meta.IsDefined("postgres_dsn") {
		cfg.PostgresDSN = strings.TrimSpace(raw.PostgresDSN)
	}
	if meta.IsDefined("seal_key") {
		cfg.SealKeyHex = strings.TrimSpace(raw.SealKeyHex)
	}
	if meta.IsDefined("poll_attempts") {
		cfg.PollAttempts = raw.PollAttempts
	}
	if meta.IsDefined("poll_interval_ms") {
		cfg.PollIntervalMS = raw.PollIntervalMS
	}
	if meta.IsDefined("sim_ack_after_polls") {
		cfg.SimAckAfterPolls = raw.SimAckAfterPolls
	}
	if meta.IsDefined("sim_reject_nth") {
		cfg.SimRejectNth = raw.SimRejectNth
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Storage {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("load efile config: unsupported storage %q (expected memory, sqlite or postgres)", c.Storage)
	}
	if c.Storage == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("load efile config: postgres storage requires postgres_dsn")
	}
	if len(c.ETIN) != 5 {
		return fmt.Errorf("load efile config: etin must be 5 characters, got %q", c.ETIN)
	}
	if c.SealKeyHex != "" {
		if _, err := c.SealKey(); err != nil {
			return err
		}
	}
	return nil
}

// SealKey decodes the hex sealing key, or returns nil when unset.
func (c Config) SealKey() ([]byte, error) {
	if c.SealKeyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.SealKeyHex)
	if err != nil {
		return nil, fmt.Errorf("load efile config: seal_key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("load efile config: seal_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
