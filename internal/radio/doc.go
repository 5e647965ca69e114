// Package radio owns the half-duplex radio link state machine.
//
// Ownership boundary:
// - Driver: the hardware collaborator (configure, transmit, listen, sleep)
// - Link: Idle/Transmitting/Listening/Fault arbitration over one Driver
// - the most recent receive buffer and its RSSI/SNR
//
// Completion events are only applied inside Link.Poll, on the caller's
// goroutine. Drivers may produce events from any goroutine.
package radio
