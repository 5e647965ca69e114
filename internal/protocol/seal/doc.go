// Package seal converts plaintext messages to and from encrypted frames.
//
// Frames are AES-256-CBC under a pre-shared key with PKCS#7 padding. The IV
// carries the sender's 64-bit counter in its low-order bytes, so a counter
// value must never be used twice under one key. The codec cannot detect reuse;
// callers own the counter (see chunk.Counter).
//
// Known weakness: there is no authentication tag. Padding validation is the
// only integrity check, so a corrupted or forged ciphertext whose last block
// happens to decrypt to valid padding is accepted as a (wrong) message.
package seal
