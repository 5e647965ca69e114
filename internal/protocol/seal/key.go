package seal

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	KeySize = 32

	// KeyInfo is the HKDF info label for passphrase-derived link keys.
	KeyInfo = "loralink-psk"
)

var ErrInvalidKey = errors.New("seal: key must be 32 bytes")

// DefaultKey is the factory pre-shared key. Deployments should override it.
var DefaultKey = [KeySize]byte{
	0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef,
	0xfe, 0xdc, 0xba, 0x98, 0x76, 0x54, 0x32, 0x10,
	0x0f, 0x1e, 0x2d, 0x3c, 0x4b, 0x5a, 0x69, 0x78,
	0x87, 0x96, 0xa5, 0xb4, 0xc3, 0xd2, 0xe1, 0xf0,
}

// ParseHexKey decodes a 64 character hex string into a key.
func ParseHexKey(raw string) ([KeySize]byte, error) {
	var key [KeySize]byte
	b, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return key, fmt.Errorf("seal: decode hex key: %w", err)
	}
	if len(b) != KeySize {
		return key, fmt.Errorf("%w: got %d", ErrInvalidKey, len(b))
	}
	copy(key[:], b)
	return key, nil
}

// DeriveKey stretches a shared passphrase into a link key with HKDF-SHA256.
// Both peers must use the same passphrase and salt.
func DeriveKey(passphrase, salt string) ([KeySize]byte, error) {
	var key [KeySize]byte
	if passphrase == "" {
		return key, errors.New("seal: empty passphrase")
	}
	r := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte(KeyInfo))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, fmt.Errorf("seal: hkdf read: %w", err)
	}
	return key, nil
}
