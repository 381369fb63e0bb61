// Package ackpolicy implements spec.md §9's "Unify ACK emission" design
// note as a single function of (source side, destination connected?,
// proxy direction), replacing the policy-A/policy-B duplication in §4.4.
package ackpolicy

import "github.com/d3sync/hl7proxy/internal/config"

// Side identifies which peer a record arrived from or is destined for.
type Side int

const (
	Analyzer Side = iota
	LIS
)

// Timing says when a locally-generated ACK for an inbound record should
// reach its sender.
type Timing int

const (
	// Now: write the ACK before attempting to forward, per spec.md §4.4
	// "send local ACK ... first"/"immediately".
	Now Timing = iota
	// AfterForward: the forward is attempted first; the ACK follows only
	// once the record is in flight to the far side (policy B, analyzer
	// source, LIS connected).
	AfterForward
	// Deferred: the record is enqueued for the far side and no ACK is
	// written yet; the ACK is emitted later, when the retry queue
	// successfully drains the record (policy B, analyzer source, LIS
	// disconnected).
	Deferred
)

// For returns the ACK timing for a record arriving on source, given
// whether the opposite side currently has a live stream.
//
// Per spec.md §4.4: a record from the LIS is always ACKed immediately,
// in both proxy directions. A record from the analyzer is ACKed
// immediately under ListenerToClient; under ClientToListener it is ACKed
// only once forwarding has been attempted, immediately if the LIS is
// connected or deferred until the queued record drains if it is not.
func For(direction config.ProxyDirection, source Side, destConnected bool) Timing {
	if source == LIS {
		return Now
	}
	if direction == config.DirListenerToClient {
		return Now
	}
	if destConnected {
		return AfterForward
	}
	return Deferred
}
