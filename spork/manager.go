package spork

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightningnetwork/lnd/clock"
)

// ManagerConfig holds the collaborators a Manager needs.
type ManagerConfig struct {
	// TrustKey is the single public key allowed to sign sporks.
	TrustKey *btcec.PublicKey

	// MessageMagic prefixes the digest of every signed message. An empty
	// string selects DefaultMessageMagic.
	MessageMagic string

	// Table is the shared spork state.
	Table *Table

	// Store persists accepted messages. It may be nil, in which case
	// nothing survives a restart.
	Store Store

	// Clock provides the signing time of locally authored sporks.
	Clock clock.Clock

	// Broadcast sends msgs to every connected peer except those in
	// skips. It must not block on slow peers.
	Broadcast func(skips map[int32]struct{},
		msgs ...sporkwire.Message) error
}

// Manager signs, verifies and authors sporks, and applies accepted ones to
// the shared table.
type Manager struct {
	cfg *ManagerConfig

	persister *persister

	keyMtx     sync.RWMutex
	signingKey *btcec.PrivateKey
}

// NewManager creates a Manager from cfg.
func NewManager(cfg *ManagerConfig) *Manager {
	if cfg.MessageMagic == "" {
		cfg.MessageMagic = DefaultMessageMagic
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Manager{
		cfg:       cfg,
		persister: newPersister(cfg.Store, cfg.Table),
	}
}

// SetSigningKey installs key as the local signing key after checking that
// it is the private half of the trust key. The key is only held in memory.
func (m *Manager) SetSigningKey(key *btcec.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("%w: nil key", ErrSigningUnavailable)
	}

	// Sign a zero message and check it verifies against the trust key.
	var zero sporkwire.Spork
	sig, err := signSpork(key, m.cfg.MessageMagic, &zero)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigningUnavailable, err)
	}
	zero.Signature = sig

	if err := m.Verify(&zero); err != nil {
		return fmt.Errorf("%w: key does not match spork key: %v",
			ErrSigningUnavailable, err)
	}

	m.keyMtx.Lock()
	m.signingKey = key
	m.keyMtx.Unlock()

	log.Infof("Spork signing key installed")

	return nil
}

// SetSigningKeyWIF decodes a WIF encoded private key and installs it with
// SetSigningKey. The network of the key isn't checked.
func (m *Manager) SetSigningKeyWIF(encoded string) error {
	wif, err := btcutil.DecodeWIF(encoded)
	if err != nil {
		return fmt.Errorf("%w: invalid WIF: %v", ErrSigningUnavailable,
			err)
	}

	return m.SetSigningKey(wif.PrivKey)
}

// HasSigningKey reports whether a signing key has been installed.
func (m *Manager) HasSigningKey() bool {
	m.keyMtx.RLock()
	defer m.keyMtx.RUnlock()

	return m.signingKey != nil
}

// Sign attaches a signature by the local signing key to msg.
func (m *Manager) Sign(msg *sporkwire.Spork) error {
	m.keyMtx.RLock()
	key := m.signingKey
	m.keyMtx.RUnlock()

	if key == nil {
		return fmt.Errorf("%w: no signing key", ErrSigningUnavailable)
	}

	sig, err := signSpork(key, m.cfg.MessageMagic, msg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSigningUnavailable, err)
	}
	msg.Signature = sig

	return nil
}

// Verify returns nil iff msg carries a valid signature by the trust key.
func (m *Manager) Verify(msg *sporkwire.Spork) error {
	return verifySpork(m.cfg.TrustKey, m.cfg.MessageMagic, msg)
}

// UpdateSpork authors a new message setting id to value, signs it, applies
// it locally and relays it to every peer.
func (m *Manager) UpdateSpork(id ID, value int64) (sporkwire.Spork, error) {
	if !IsKnown(id) {
		return sporkwire.Spork{}, fmt.Errorf("%w: %d", ErrUnknownSpork,
			id)
	}

	// Never sign at or before the active entry, otherwise the update
	// would be dropped as stale by every peer.
	signedAt := m.cfg.Clock.Now().Unix()
	if cur, ok := m.cfg.Table.Active(id); ok && cur.SignedAt >= signedAt {
		if cur.SignedAt == math.MaxInt64 {
			return sporkwire.Spork{}, fmt.Errorf("%w: spork %v",
				ErrSignedAtExhausted, id)
		}
		signedAt = cur.SignedAt + 1
	}

	msg := sporkwire.Spork{
		ID:       int32(id),
		Value:    value,
		SignedAt: signedAt,
	}
	if err := m.Sign(&msg); err != nil {
		return sporkwire.Spork{}, err
	}

	if err := m.apply(&msg, nil); err != nil {
		return sporkwire.Spork{}, err
	}

	log.Infof("Updated spork %v to %v", id, formatValue(value))

	return msg, nil
}

// apply commits an authenticated message to the table, persists it and
// relays it to every peer not in skips.
func (m *Manager) apply(msg *sporkwire.Spork, skips map[int32]struct{}) error {
	if err := m.cfg.Table.Commit(msg); err != nil {
		return err
	}

	// Write failures don't undo the in-memory acceptance.
	if err := m.persister.persist(msg); err != nil {
		log.Errorf("Unable to persist %v: %v", msg, err)
	}

	m.Relay(msg, skips)

	return nil
}

// Relay hands msg to the transport for delivery to all peers not in skips.
// Delivery is not acknowledged.
func (m *Manager) Relay(msg *sporkwire.Spork, skips map[int32]struct{}) {
	if m.cfg.Broadcast == nil {
		return
	}

	relayed := msg.Copy()
	err := m.cfg.Broadcast(skips, &relayed)
	switch {
	case errors.Is(err, ErrRelayStopped):
		log.Debugf("Not relaying %v: transport stopped", msg)

	case err != nil:
		log.Warnf("Unable to relay %v: %v", msg, err)
	}
}
