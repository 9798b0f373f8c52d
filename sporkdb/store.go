package sporkdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/kvdb"
)

var (
	// sporkStoreBucket is the top level bucket holding the active message
	// of every spork id.
	//
	// maps:
	//   id (4 bytes, big endian) -> spork payload
	sporkStoreBucket = []byte("spork-store")

	// ErrCorruptedSporkStore indicates that the on-disk bucketing
	// structure has altered since the store was initialized.
	ErrCorruptedSporkStore = errors.New("spork store has been corrupted")
)

// Store is a spork.Store backed by a kvdb.Backend.
type Store struct {
	db kvdb.Backend
}

// A compile-time assertion to ensure Store implements the spork.Store
// interface.
var _ spork.Store = (*Store)(nil)

// New creates a spork store in db, creating its bucket if needed.
func New(db kvdb.Backend) (*Store, error) {
	err := kvdb.Batch(db, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(sporkStoreBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create required buckets: %w",
			err)
	}

	return &Store{db: db}, nil
}

// sporkKey returns the database key of id.
func sporkKey(id spork.ID) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], uint32(id))

	return k[:]
}

// ReadSpork returns the message stored for id.
//
// NOTE: This is part of the spork.Store interface.
func (s *Store) ReadSpork(id spork.ID) (fn.Option[sporkwire.Spork], error) {
	var (
		msg   sporkwire.Spork
		found bool
	)
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		sporkStore := tx.ReadBucket(sporkStoreBucket)
		if sporkStore == nil {
			return ErrCorruptedSporkStore
		}

		v := sporkStore.Get(sporkKey(id))
		if v == nil {
			return nil
		}

		if err := msg.Decode(bytes.NewReader(v), 0); err != nil {
			return fmt.Errorf("unable to decode spork %d: %w", id,
				err)
		}
		found = true

		return nil
	}, func() {
		msg = sporkwire.Spork{}
		found = false
	})
	if err != nil {
		return fn.None[sporkwire.Spork](), err
	}

	if !found {
		return fn.None[sporkwire.Spork](), nil
	}

	return fn.Some(msg), nil
}

// WriteSpork stores msg as the message for id.
//
// NOTE: This is part of the spork.Store interface.
func (s *Store) WriteSpork(id spork.ID, msg *sporkwire.Spork) error {
	log.Tracef("Writing %v under id %d", msg, id)

	var b bytes.Buffer
	if err := msg.Encode(&b, 0); err != nil {
		return err
	}

	return kvdb.Batch(s.db, func(tx kvdb.RwTx) error {
		sporkStore := tx.ReadWriteBucket(sporkStoreBucket)
		if sporkStore == nil {
			return ErrCorruptedSporkStore
		}

		return sporkStore.Put(sporkKey(id), b.Bytes())
	})
}

// Sporks returns every stored message keyed by id.
func (s *Store) Sporks() (map[spork.ID]sporkwire.Spork, error) {
	var sporks map[spork.ID]sporkwire.Spork
	err := kvdb.View(s.db, func(tx kvdb.RTx) error {
		sporkStore := tx.ReadBucket(sporkStoreBucket)
		if sporkStore == nil {
			return ErrCorruptedSporkStore
		}

		return sporkStore.ForEach(func(k, v []byte) error {
			if len(k) != 4 {
				return nil
			}
			id := spork.ID(binary.BigEndian.Uint32(k))

			var msg sporkwire.Spork
			err := msg.Decode(bytes.NewReader(v), 0)
			if err != nil {
				log.Warnf("Skipping undecodable spork %d: %v",
					id, err)
				return nil
			}

			sporks[id] = msg
			return nil
		})
	}, func() {
		sporks = make(map[spork.ID]sporkwire.Spork)
	})
	if err != nil {
		return nil, err
	}

	return sporks, nil
}
