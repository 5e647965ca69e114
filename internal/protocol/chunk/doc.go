// Package chunk owns the segmented transport between the frame codec and the
// radio link.
//
// Ownership boundary:
// - the session send counter (never wraps, never repeats)
// - outbound segmentation paced by link readiness
// - inbound stream reassembly and resynchronization
//
// Delivery is best effort: no acknowledgements, retransmission or ordering
// across messages.
//
// Resynchronization defaults to ResyncSlide, which drops one byte at a time
// after a bad length prefix or an undecodable frame. The reference firmware
// instead empties its buffer (ResyncDiscard); after an odd number of stray
// bytes that rule reads every later prefix one byte off and never recovers.
// Both policies agree on a clean stream, so peers may mix them. Select
// ResyncDiscard to reproduce the firmware exactly.
package chunk
