package spork

import (
	"errors"

	"github.com/catocoin/sporkd/sporkwire"
)

// MisbehaviorScore is the penalty reported for a peer relaying a spork with
// an invalid signature. It bans the peer at the default threshold.
const MisbehaviorScore = 100

// Peer is the remote end of the connection a message arrived on.
type Peer interface {
	// ID identifies the connection for relay skipping and penalties.
	ID() int32

	// SendMessage queues msgs for delivery to the peer.
	SendMessage(msgs ...sporkwire.Message) error
}

// HandlerConfig holds the collaborators of a Handler.
type HandlerConfig struct {
	// Manager verifies and applies accepted sporks.
	Manager *Manager

	// Table is the shared spork state.
	Table *Table

	// ChainReady reports whether the node has a chain tip. Sporks that
	// arrive before that are ignored. A nil func means always ready.
	ChainReady func() bool

	// ReportMisbehavior penalizes a peer. It may be nil.
	ReportMisbehavior func(peer Peer, score uint32, reason string)

	// NotifyOutcome is called with the disposition of every inbound
	// spork. It may be nil.
	NotifyOutcome func(id ID, outcome Outcome)
}

// Handler processes inbound spork protocol messages against the shared
// table. It keeps no state of its own between messages.
type Handler struct {
	cfg *HandlerConfig
}

// NewHandler creates a Handler from cfg.
func NewHandler(cfg *HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

// ProcessMessage dispatches a spork protocol message received from peer.
// Messages of other types are ignored. Returns true if msg was a spork
// protocol message.
func (h *Handler) ProcessMessage(peer Peer, msg sporkwire.Message) bool {
	switch m := msg.(type) {
	case *sporkwire.Spork:
		h.ProcessSpork(peer, m)

	case *sporkwire.GetSporks:
		if err := h.ProcessGetSporks(peer); err != nil {
			log.Debugf("Unable to answer getsporks from peer %d: %v",
				peer.ID(), err)
		}

	default:
		return false
	}

	return true
}

// ProcessSpork runs one inbound spork through the acceptance rules and
// returns what happened to it.
func (h *Handler) ProcessSpork(peer Peer, msg *sporkwire.Spork) Outcome {
	outcome := h.processSpork(peer, msg)

	if h.cfg.NotifyOutcome != nil {
		h.cfg.NotifyOutcome(ID(msg.ID), outcome)
	}

	return outcome
}

func (h *Handler) processSpork(peer Peer, msg *sporkwire.Spork) Outcome {
	if h.cfg.ChainReady != nil && !h.cfg.ChainReady() {
		log.Tracef("Ignoring %v from peer %d, chain not ready", msg,
			peer.ID())
		return OutcomeNotReady
	}

	id := ID(msg.ID)
	if !IsKnown(id) {
		log.Debugf("Ignoring unknown spork %d from peer %d", msg.ID,
			peer.ID())
		return OutcomeUnknown
	}

	if !h.cfg.Table.IsFresh(msg) {
		if _, seen := h.cfg.Table.Lookup(msg.Hash()); seen {
			log.Tracef("Ignoring seen %v from peer %d", msg,
				peer.ID())
		} else {
			log.Debugf("Ignoring outdated %v from peer %d", msg,
				peer.ID())
		}

		return OutcomeStale
	}

	log.Debugf("New %v (%v) from peer %d: %v", msg, id, peer.ID(),
		spewClosure(msg))

	if err := h.cfg.Manager.Verify(msg); err != nil {
		log.Warnf("Invalid signature on %v from peer %d: %v", msg,
			peer.ID(), err)

		if h.cfg.ReportMisbehavior != nil {
			h.cfg.ReportMisbehavior(
				peer, MisbehaviorScore, err.Error(),
			)
		}

		return OutcomeInvalidSignature
	}

	skips := map[int32]struct{}{peer.ID(): {}}
	err := h.cfg.Manager.apply(msg, skips)
	switch {
	// Another peer delivered a newer message while this one was being
	// verified.
	case errors.Is(err, ErrStaleUpdate):
		return OutcomeStale

	case err != nil:
		log.Errorf("Unable to apply %v: %v", msg, err)
		return OutcomeStale
	}

	log.Infof("Accepted %v for %v, value %v", msg, id,
		formatValue(msg.Value))

	return OutcomeAccepted
}

// ProcessGetSporks replies to peer with every active spork in ascending id
// order.
func (h *Handler) ProcessGetSporks(peer Peer) error {
	active := h.cfg.Table.ActiveSporks()
	if len(active) == 0 {
		return nil
	}

	msgs := make([]sporkwire.Message, 0, len(active))
	for i := range active {
		msgs = append(msgs, &active[i])
	}

	log.Debugf("Sending %d sporks to peer %d", len(msgs), peer.ID())

	return peer.SendMessage(msgs...)
}
