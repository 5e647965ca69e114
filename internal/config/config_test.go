package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/loralink/internal/protocol/chunk"
	"github.com/danmuck/loralink/internal/protocol/seal"
)

func TestDefaultNodeConfigValidates(t *testing.T) {
	if err := ValidateNodeConfig(DefaultNodeConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestTemplatesLoad(t *testing.T) {
	dir := t.TempDir()
	for _, kind := range []string{DriverSim, DriverUDP, DriverRF95} {
		path := filepath.Join(dir, kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("%s: write template: %v", kind, err)
		}
		cfg, err := LoadNodeConfig(path)
		if err != nil {
			t.Fatalf("%s: load template: %v", kind, err)
		}
		if cfg.Driver != kind {
			t.Fatalf("%s: driver = %q", kind, cfg.Driver)
		}
		sess, err := cfg.SessionConfig()
		if err != nil {
			t.Fatalf("%s: session config: %v", kind, err)
		}
		if sess.InputTerminator != '.' || sess.WireTerminator != '\n' {
			t.Fatalf("%s: terminators = %q %q", kind, sess.InputTerminator, sess.WireTerminator)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("%s: expected refusal to overwrite", kind)
		}
	}
	if _, err := Template("bogus"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadNodeConfigKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.toml")
	if err := os.WriteFile(path, []byte("name = \"partial\"\nchunk_size = 20\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "partial" || cfg.ChunkSize != 20 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Radio.SpreadingFactor != 7 || cfg.Driver != DriverSim {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("LORALINK_CHUNK_SIZE", "16")
	t.Setenv("LORALINK_RESYNC", "discard")
	t.Setenv("LORALINK_RADIO_SPREADING_FACTOR", "12")
	cfg, err := LoadNodeConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tc, err := cfg.TransportConfig()
	if err != nil {
		t.Fatalf("transport config: %v", err)
	}
	if tc.ChunkSize != 16 || tc.Resync != chunk.ResyncDiscard {
		t.Fatalf("env not applied: %+v", tc)
	}
	params, err := cfg.RadioParams()
	if err != nil {
		t.Fatalf("radio params: %v", err)
	}
	if params.SpreadingFactor != 12 {
		t.Fatalf("spreading factor = %d", params.SpreadingFactor)
	}
}

func TestValidateNodeConfigRejections(t *testing.T) {
	cases := map[string]func(*NodeConfig){
		"driver":     func(c *NodeConfig) { c.Driver = "lora-over-pigeon" },
		"chunk":      func(c *NodeConfig) { c.ChunkSize = 300 },
		"resync":     func(c *NodeConfig) { c.Resync = "pray" },
		"terminator": func(c *NodeConfig) { c.InputTerminator = "end" },
		"sf":         func(c *NodeConfig) { c.Radio.SpreadingFactor = 13 },
		"timeout":    func(c *NodeConfig) { c.Radio.TxTimeout = "soon" },
		"key":        func(c *NodeConfig) { c.Key.Hex = "abcd" },
		"udp":        func(c *NodeConfig) { c.Driver, c.UDP.Peer = DriverUDP, "" },
		"rf95":       func(c *NodeConfig) { c.Driver = DriverRF95 },
	}
	for name, mutate := range cases {
		cfg := DefaultNodeConfig()
		mutate(&cfg)
		if err := ValidateNodeConfig(cfg); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLinkKeyResolution(t *testing.T) {
	cfg := DefaultNodeConfig()
	key, err := cfg.LinkKey()
	if err != nil || key != seal.DefaultKey || !cfg.UsesDefaultKey() {
		t.Fatalf("expected default key, err=%v", err)
	}

	cfg.Key.Passphrase = "correct horse"
	cfg.Key.Salt = "battery"
	derived, err := cfg.LinkKey()
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	want, _ := seal.DeriveKey("correct horse", "battery")
	if derived != want || derived == seal.DefaultKey {
		t.Fatalf("unexpected derived key")
	}

	cfg.Key.Hex = strings.Repeat("ab", seal.KeySize)
	hexKey, err := cfg.LinkKey()
	if err != nil {
		t.Fatalf("hex key: %v", err)
	}
	if hexKey[0] != 0xab || hexKey[seal.KeySize-1] != 0xab {
		t.Fatalf("hex key should win over passphrase")
	}
}

func TestParseTerminator(t *testing.T) {
	cases := map[string]byte{".": '.', "\n": '\n', `\n`: '\n', `\r`: '\r', `\0`: 0, ";": ';'}
	for raw, want := range cases {
		got, err := parseTerminator(raw)
		if err != nil || got != want {
			t.Fatalf("parseTerminator(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	for _, raw := range []string{"", "ab"} {
		if _, err := parseTerminator(raw); err == nil {
			t.Fatalf("parseTerminator(%q) should fail", raw)
		}
	}
}
