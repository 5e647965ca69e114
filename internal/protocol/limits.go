package protocol

const (
	// MaxPacket is the largest payload the radio hardware carries in one packet.
	// The reassembly accumulator reuses it as the largest representable frame.
	MaxPacket = 255

	BlockSize  = 16
	IVSize     = 16
	LengthSize = 2
	HeaderSize = LengthSize + IVSize

	// MaxCipher is a block multiple that leaves headroom below MaxPacket.
	MaxCipher = 224
	// MaxPlaintext keeps room for at least one byte of PKCS#7 padding.
	MaxPlaintext = MaxCipher - 1

	DefaultChunkSize = 8

	DefaultInputTerminator byte = '.'
	DefaultWireTerminator  byte = '\n'
)

// ValidCipherLength reports whether n is an acceptable ciphertext length on the wire.
func ValidCipherLength(n int) bool {
	return n >= BlockSize && n <= MaxCipher && n%BlockSize == 0
}

// WireSize returns the serialized frame size for a ciphertext of cipherLen bytes.
func WireSize(cipherLen int) int {
	return HeaderSize + cipherLen
}
