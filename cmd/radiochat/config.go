package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/loralink/internal/config"
)

type fileConfig struct {
	Name            string `toml:"name"`
	Driver          string `toml:"driver"`
	ChunkSize       int    `toml:"chunk_size"`
	CounterStart    uint64 `toml:"counter_start"`
	Resync          string `toml:"resync"`
	InputTerminator string `toml:"input_terminator"`
	WireTerminator  string `toml:"wire_terminator"`
	EchoInput       bool   `toml:"echo_input"`
	IdleYield       string `toml:"idle_yield"`
	MetricsAddr     string `toml:"metrics_addr"`
	JournalPath     string `toml:"journal_path"`

	Key   config.KeyConfig   `toml:"key"`
	Radio config.RadioConfig `toml:"radio"`
	UDP   config.UDPConfig   `toml:"udp"`
	RF95  config.RF95Config  `toml:"rf95"`
}

// loadNodeConfig overlays only the keys present in the file at path onto the
// defaults, then applies LORALINK_* overrides and validates.
func loadNodeConfig(path string) (config.NodeConfig, error) {
	cfg := config.DefaultNodeConfig()

	if strings.TrimSpace(path) != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return config.NodeConfig{}, fmt.Errorf("load radiochat config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return config.NodeConfig{}, fmt.Errorf("unknown config keys: %v", undecoded)
		}
		overlay(meta, raw, &cfg)
	}

	if err := config.ApplyEnv(&cfg); err != nil {
		return config.NodeConfig{}, err
	}
	if err := config.ValidateNodeConfig(cfg); err != nil {
		return config.NodeConfig{}, err
	}
	return cfg, nil
}

func overlay(meta toml.MetaData, raw fileConfig, cfg *config.NodeConfig) {
	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("driver") {
		cfg.Driver = strings.ToLower(strings.TrimSpace(raw.Driver))
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}
	if meta.IsDefined("counter_start") {
		cfg.CounterStart = raw.CounterStart
	}
	if meta.IsDefined("resync") {
		cfg.Resync = strings.TrimSpace(raw.Resync)
	}
	if meta.IsDefined("input_terminator") {
		cfg.InputTerminator = raw.InputTerminator
	}
	if meta.IsDefined("wire_terminator") {
		cfg.WireTerminator = raw.WireTerminator
	}
	if meta.IsDefined("echo_input") {
		cfg.EchoInput = raw.EchoInput
	}
	if meta.IsDefined("idle_yield") {
		cfg.IdleYield = strings.TrimSpace(raw.IdleYield)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("journal_path") {
		cfg.JournalPath = strings.TrimSpace(raw.JournalPath)
	}

	if meta.IsDefined("key", "hex") {
		cfg.Key.Hex = raw.Key.Hex
	}
	if meta.IsDefined("key", "passphrase") {
		cfg.Key.Passphrase = raw.Key.Passphrase
	}
	if meta.IsDefined("key", "salt") {
		cfg.Key.Salt = raw.Key.Salt
	}

	if meta.IsDefined("radio", "frequency_hz") {
		cfg.Radio.FrequencyHz = raw.Radio.FrequencyHz
	}
	if meta.IsDefined("radio", "tx_power_dbm") {
		cfg.Radio.TxPowerDBm = raw.Radio.TxPowerDBm
	}
	if meta.IsDefined("radio", "bandwidth") {
		cfg.Radio.Bandwidth = raw.Radio.Bandwidth
	}
	if meta.IsDefined("radio", "spreading_factor") {
		cfg.Radio.SpreadingFactor = raw.Radio.SpreadingFactor
	}
	if meta.IsDefined("radio", "coding_rate") {
		cfg.Radio.CodingRate = raw.Radio.CodingRate
	}
	if meta.IsDefined("radio", "preamble_length") {
		cfg.Radio.PreambleLength = raw.Radio.PreambleLength
	}
	if meta.IsDefined("radio", "symbol_timeout") {
		cfg.Radio.SymbolTimeout = raw.Radio.SymbolTimeout
	}
	if meta.IsDefined("radio", "fixed_length_payload") {
		cfg.Radio.FixedLength = raw.Radio.FixedLength
	}
	if meta.IsDefined("radio", "iq_inverted") {
		cfg.Radio.IQInverted = raw.Radio.IQInverted
	}
	if meta.IsDefined("radio", "tx_timeout") {
		cfg.Radio.TxTimeout = strings.TrimSpace(raw.Radio.TxTimeout)
	}

	if meta.IsDefined("udp", "listen") {
		cfg.UDP.Listen = strings.TrimSpace(raw.UDP.Listen)
	}
	if meta.IsDefined("udp", "peer") {
		cfg.UDP.Peer = strings.TrimSpace(raw.UDP.Peer)
	}
	if meta.IsDefined("rf95", "device") {
		cfg.RF95.Device = strings.TrimSpace(raw.RF95.Device)
	}
}
