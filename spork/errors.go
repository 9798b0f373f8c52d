package spork

import "errors"

var (
	// ErrUnknownSpork is returned when a spork id is not part of the
	// compiled-in catalog. Such messages are expected traffic from newer
	// or older nodes and are ignored.
	ErrUnknownSpork = errors.New("unknown spork")

	// ErrStaleUpdate is returned when a spork message is not newer than
	// the active entry for its id.
	ErrStaleUpdate = errors.New("spork update is not newer than the " +
		"active value")

	// ErrSignedAtExhausted is returned when a local update can't be
	// signed later than the active entry because its signing time is
	// already the largest representable one.
	ErrSignedAtExhausted = errors.New("active spork carries the maximum " +
		"signing time")

	// ErrInvalidSignature is returned when a spork message isn't signed
	// by the network's spork key.
	ErrInvalidSignature = errors.New("invalid spork signature")

	// ErrSigningUnavailable is returned when a spork must be signed
	// locally but no usable signing key is configured.
	ErrSigningUnavailable = errors.New("spork signing unavailable")

	// ErrPersistenceFailure is returned when a spork can't be read from or
	// written to the backing store.
	ErrPersistenceFailure = errors.New("spork persistence failure")

	// ErrRelayStopped may be returned by a broadcast function whose
	// transport is shutting down.
	ErrRelayStopped = errors.New("relay stopped")
)

// Outcome describes what happened to a single inbound spork message.
type Outcome uint8

const (
	// OutcomeAccepted means the message was authenticated, newer than the
	// active value, and is now the active value for its id.
	OutcomeAccepted Outcome = iota

	// OutcomeUnknown means the message referenced an id outside the
	// catalog and was dropped.
	OutcomeUnknown

	// OutcomeStale means the message was not newer than the active value
	// and was dropped.
	OutcomeStale

	// OutcomeInvalidSignature means authentication failed. The message
	// was dropped and the sender reported.
	OutcomeInvalidSignature

	// OutcomeNotReady means the node isn't ready to process sporks yet,
	// for example because it has no chain tip.
	OutcomeNotReady
)

// String returns a human readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeStale:
		return "stale"
	case OutcomeInvalidSignature:
		return "invalid_signature"
	case OutcomeNotReady:
		return "not_ready"
	default:
		return "<unknown outcome>"
	}
}
