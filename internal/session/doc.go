// Package session runs the cooperative loop that ties local input, the chunked
// transport and the radio link together.
//
// A Loop is single-threaded. Each Step polls the link, drains any received
// packet into the reassembler, takes at most one input byte, and issues the
// next outbound segment when the link is idle. Listening is re-armed once
// nothing is in flight.
package session
