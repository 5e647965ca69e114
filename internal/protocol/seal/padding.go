package seal

import (
	"fmt"

	"github.com/danmuck/loralink/internal/protocol"
)

// Pad appends PKCS#7 padding, failing when the result would exceed max bytes.
func Pad(plaintext []byte, max int) ([]byte, error) {
	padLen := protocol.BlockSize - len(plaintext)%protocol.BlockSize
	total := len(plaintext) + padLen
	if total > max {
		return nil, fmt.Errorf("%w: padded=%d max=%d", protocol.ErrPayloadTooLarge, total, max)
	}
	out := make([]byte, total)
	copy(out, plaintext)
	for i := len(plaintext); i < total; i++ {
		out[i] = byte(padLen)
	}
	return out, nil
}

// Unpad validates and strips PKCS#7 padding. The returned slice aliases b.
func Unpad(b []byte) ([]byte, error) {
	n := len(b)
	if n == 0 || n%protocol.BlockSize != 0 {
		return nil, fmt.Errorf("%w: length %d", protocol.ErrBadPadding, n)
	}
	padLen := int(b[n-1])
	if padLen == 0 || padLen > protocol.BlockSize || padLen > n {
		return nil, fmt.Errorf("%w: pad byte %d", protocol.ErrBadPadding, padLen)
	}
	for i := n - padLen; i < n; i++ {
		if int(b[i]) != padLen {
			return nil, fmt.Errorf("%w: non-uniform padding", protocol.ErrBadPadding)
		}
	}
	return b[:n-padLen], nil
}
