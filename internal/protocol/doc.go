// Package protocol owns the radio wire contract shared by the codec and transport.
//
// Ownership boundary:
// - wire limits (packet, block, cipher and plaintext bounds)
// - shared sentinel errors
// - frame/seal/chunk primitives live in subpackages
package protocol
