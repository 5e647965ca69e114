package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case DriverSim, "node":
		return simTemplate, nil
	case DriverUDP:
		return udpTemplate, nil
	case DriverRF95:
		return rf95Template, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const radioSection = `
[radio]
frequency_hz = 915000000
tx_power_dbm = 14
bandwidth = 0
spreading_factor = 7
coding_rate = 1
preamble_length = 8
symbol_timeout = 5
fixed_length_payload = false
iq_inverted = false
tx_timeout = "3s"
`

const simTemplate = `name = "loralink-sim"
driver = "sim"
chunk_size = 8
resync = "slide"
input_terminator = "."
wire_terminator = "\n"
echo_input = true
metrics_addr = ""
journal_path = ""

[key]
# 64 hex characters, or set passphrase (and salt) instead.
hex = ""
passphrase = ""
salt = ""
` + radioSection

const udpTemplate = `name = "loralink-a"
driver = "udp"
chunk_size = 8
resync = "slide"
input_terminator = "."
wire_terminator = "\n"
echo_input = true
metrics_addr = "127.0.0.1:9400"
journal_path = "loralink-a.db"

[key]
hex = ""
passphrase = "change-me"
salt = "loralink"

[udp]
listen = "127.0.0.1:7400"
peer = "127.0.0.1:7401"
` + radioSection

const rf95Template = `name = "loralink-rf95"
driver = "rf95"
chunk_size = 8
resync = "slide"
input_terminator = "."
wire_terminator = "\n"
echo_input = true
metrics_addr = "127.0.0.1:9400"
journal_path = "loralink.db"

[key]
hex = ""
passphrase = "change-me"
salt = "loralink"

[rf95]
device = "/dev/ttyUSB0"
` + radioSection
