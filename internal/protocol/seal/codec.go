package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/protocol/frame"
)

// Codec encrypts and decrypts frames under one pre-shared key. It holds no
// per-message state and is safe to share.
type Codec struct {
	block cipher.Block
}

func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: init cipher: %w", err)
	}
	return &Codec{block: block}, nil
}

// BuildIV places counter big-endian in the low eight bytes; the high bytes stay zero.
func BuildIV(counter uint64) [protocol.IVSize]byte {
	var iv [protocol.IVSize]byte
	binary.BigEndian.PutUint64(iv[protocol.IVSize-8:], counter)
	return iv
}

// Encode pads and encrypts plaintext with the IV derived from counter.
// counter must be fresh for every call under this key.
func (c *Codec) Encode(plaintext []byte, counter uint64) (frame.Frame, error) {
	if len(plaintext) == 0 {
		return frame.Frame{}, protocol.ErrEmptyPayload
	}
	padded, err := Pad(plaintext, protocol.MaxCipher)
	if err != nil {
		return frame.Frame{}, err
	}
	iv := BuildIV(counter)
	cipher.NewCBCEncrypter(c.block, iv[:]).CryptBlocks(padded, padded)
	return frame.Frame{IV: iv, Ciphertext: padded}, nil
}

// Decode decrypts f and strips its padding. A padding failure is the only
// integrity signal available; see the package doc.
func (c *Codec) Decode(f frame.Frame) ([]byte, error) {
	if !protocol.ValidCipherLength(len(f.Ciphertext)) {
		return nil, fmt.Errorf("seal: %w: %d", protocol.ErrInvalidLength, len(f.Ciphertext))
	}
	plain := make([]byte, len(f.Ciphertext))
	cipher.NewCBCDecrypter(c.block, f.IV[:]).CryptBlocks(plain, f.Ciphertext)
	out, err := Unpad(plain)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, protocol.ErrEmptyPayload
	}
	return out, nil
}
