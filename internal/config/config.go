package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	DriverSim  = "sim"
	DriverUDP  = "udp"
	DriverRF95 = "rf95"
)

// NodeConfig describes one radio chat node. File values are overridden by
// LORALINK_* environment variables.
type NodeConfig struct {
	Name            string `toml:"name"             env:"LORALINK_NODE_NAME"`
	Driver          string `toml:"driver"           env:"LORALINK_DRIVER"`
	ChunkSize       int    `toml:"chunk_size"       env:"LORALINK_CHUNK_SIZE"`
	CounterStart    uint64 `toml:"counter_start"    env:"LORALINK_COUNTER_START"`
	Resync          string `toml:"resync"           env:"LORALINK_RESYNC"`
	InputTerminator string `toml:"input_terminator" env:"LORALINK_INPUT_TERMINATOR"`
	WireTerminator  string `toml:"wire_terminator"  env:"LORALINK_WIRE_TERMINATOR"`
	EchoInput       bool   `toml:"echo_input"       env:"LORALINK_ECHO_INPUT"`
	IdleYield       string `toml:"idle_yield"       env:"LORALINK_IDLE_YIELD"`
	MetricsAddr     string `toml:"metrics_addr"     env:"LORALINK_METRICS_ADDR"`
	JournalPath     string `toml:"journal_path"     env:"LORALINK_JOURNAL_PATH"`

	Key   KeyConfig   `toml:"key"`
	Radio RadioConfig `toml:"radio"`
	UDP   UDPConfig   `toml:"udp"`
	RF95  RF95Config  `toml:"rf95"`
}

// KeyConfig selects the pre-shared key. Hex wins over Passphrase; with
// neither set the built-in development key is used.
type KeyConfig struct {
	Hex        string `toml:"hex"        env:"LORALINK_KEY_HEX"`
	Passphrase string `toml:"passphrase" env:"LORALINK_KEY_PASSPHRASE"`
	Salt       string `toml:"salt"       env:"LORALINK_KEY_SALT"`
}

type RadioConfig struct {
	FrequencyHz     uint32 `toml:"frequency_hz"         env:"LORALINK_RADIO_FREQUENCY_HZ"`
	TxPowerDBm      int8   `toml:"tx_power_dbm"         env:"LORALINK_RADIO_TX_POWER_DBM"`
	Bandwidth       uint8  `toml:"bandwidth"            env:"LORALINK_RADIO_BANDWIDTH"`
	SpreadingFactor uint8  `toml:"spreading_factor"     env:"LORALINK_RADIO_SPREADING_FACTOR"`
	CodingRate      uint8  `toml:"coding_rate"          env:"LORALINK_RADIO_CODING_RATE"`
	PreambleLength  uint16 `toml:"preamble_length"      env:"LORALINK_RADIO_PREAMBLE_LENGTH"`
	SymbolTimeout   uint16 `toml:"symbol_timeout"       env:"LORALINK_RADIO_SYMBOL_TIMEOUT"`
	FixedLength     bool   `toml:"fixed_length_payload" env:"LORALINK_RADIO_FIXED_LENGTH"`
	IQInverted      bool   `toml:"iq_inverted"          env:"LORALINK_RADIO_IQ_INVERTED"`
	TxTimeout       string `toml:"tx_timeout"           env:"LORALINK_RADIO_TX_TIMEOUT"`
}

type UDPConfig struct {
	Listen string `toml:"listen" env:"LORALINK_UDP_LISTEN"`
	Peer   string `toml:"peer"   env:"LORALINK_UDP_PEER"`
}

type RF95Config struct {
	Device string `toml:"device" env:"LORALINK_RF95_DEVICE"`
}

func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Name:            "loralink",
		Driver:          DriverSim,
		ChunkSize:       8,
		CounterStart:    1,
		Resync:          "slide",
		InputTerminator: ".",
		WireTerminator:  "\n",
		EchoInput:       true,
		IdleYield:       "1ms",
		Radio: RadioConfig{
			FrequencyHz:     915_000_000,
			TxPowerDBm:      14,
			SpreadingFactor: 7,
			CodingRate:      1,
			PreambleLength:  8,
			SymbolTimeout:   5,
			TxTimeout:       "3s",
		},
		UDP: UDPConfig{
			Listen: "127.0.0.1:7400",
			Peer:   "127.0.0.1:7401",
		},
	}
}

// LoadNodeConfig layers the file at path (when non-empty) and the
// environment over the defaults, then validates the result.
func LoadNodeConfig(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if strings.TrimSpace(path) != "" {
		if err := loadToml(path, &cfg); err != nil {
			return NodeConfig{}, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return NodeConfig{}, err
	}
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any LORALINK_* variables that are set.
func ApplyEnv(cfg *NodeConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config env parse failed: %w", err)
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateNodeConfig(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("node config missing name")
	}
	switch cfg.Driver {
	case DriverSim:
	case DriverUDP:
		if strings.TrimSpace(cfg.UDP.Listen) == "" || strings.TrimSpace(cfg.UDP.Peer) == "" {
			return fmt.Errorf("udp driver requires udp.listen and udp.peer")
		}
	case DriverRF95:
		if strings.TrimSpace(cfg.RF95.Device) == "" {
			return fmt.Errorf("rf95 driver requires rf95.device")
		}
	default:
		return fmt.Errorf("unknown driver: %q", cfg.Driver)
	}
	if _, err := cfg.TransportConfig(); err != nil {
		return err
	}
	if _, err := cfg.SessionConfig(); err != nil {
		return err
	}
	if _, err := cfg.RadioParams(); err != nil {
		return err
	}
	if _, err := cfg.LinkKey(); err != nil {
		return err
	}
	return nil
}
