package sporkcfg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/catocoin/sporkd/spork"
)

// Spork holds the spork protocol settings.
//
//nolint:lll
type Spork struct {
	PubKey string `long:"pubkey" description:"Override the network's spork public key (hex). Only useful for private test networks."`

	HistorySize uint64 `long:"historysize" description:"Maximum number of distinct accepted spork messages kept in memory."`

	SigningKey string `long:"signingkey" description:"WIF encoded spork private key. When set, this node can author spork updates."`

	Updates []string `long:"update" description:"Author and relay a spork update at startup, given as NAME=VALUE or ID=VALUE. Requires spork.signingkey. May be repeated."`
}

// SporkUpdate is a locally authored spork value requested through the
// configuration.
type SporkUpdate struct {
	ID    spork.ID
	Value int64
}

// ParseSporkUpdate parses an update given as NAME=VALUE or ID=VALUE.
func ParseSporkUpdate(raw string) (SporkUpdate, error) {
	key, rawValue, ok := strings.Cut(raw, "=")
	if !ok {
		return SporkUpdate{}, fmt.Errorf("spork update %q must be "+
			"NAME=VALUE", raw)
	}
	key = strings.TrimSpace(key)

	id := spork.IDOf(key)
	if numeric, err := strconv.ParseInt(key, 10, 32); err == nil {
		id = spork.ID(numeric)
	}
	if !spork.IsKnown(id) {
		return SporkUpdate{}, fmt.Errorf("%w: %v",
			spork.ErrUnknownSpork, key)
	}

	value, err := strconv.ParseInt(strings.TrimSpace(rawValue), 10, 64)
	if err != nil {
		return SporkUpdate{}, fmt.Errorf("invalid value for spork "+
			"%v: %w", key, err)
	}

	return SporkUpdate{ID: id, Value: value}, nil
}

// ParseUpdates returns the configured updates in the order given.
func (s *Spork) ParseUpdates() ([]SporkUpdate, error) {
	updates := make([]SporkUpdate, 0, len(s.Updates))
	for _, raw := range s.Updates {
		update, err := ParseSporkUpdate(raw)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}

	return updates, nil
}

// DefaultSpork returns the default spork settings.
func DefaultSpork() *Spork {
	return &Spork{
		HistorySize: spork.DefaultHistorySize,
	}
}

// Validate checks the key encodings.
func (s *Spork) Validate() error {
	if s.PubKey != "" {
		if _, err := spork.ParseTrustKey(s.PubKey); err != nil {
			return fmt.Errorf("invalid spork.pubkey: %w", err)
		}
	}

	if s.SigningKey != "" {
		if _, err := btcutil.DecodeWIF(s.SigningKey); err != nil {
			return fmt.Errorf("invalid spork.signingkey: %w", err)
		}
	}

	if len(s.Updates) > 0 && s.SigningKey == "" {
		return fmt.Errorf("spork.update requires spork.signingkey")
	}
	if _, err := s.ParseUpdates(); err != nil {
		return err
	}

	if s.HistorySize == 0 {
		return fmt.Errorf("spork.historysize must be positive")
	}

	return nil
}

// Compile-time constraint to ensure Spork implements the Validator
// interface.
var _ Validator = (*Spork)(nil)
