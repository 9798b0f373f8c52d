package sporkwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MaxSignatureLen is the largest signature a Spork may carry. Compact
// recoverable signatures are 65 bytes, the bound leaves room for DER encoded
// signatures used by older signers.
const MaxSignatureLen = 128

// Spork is a signed network configuration value. The scalar fields are
// fixed before the signature is attached and the message is treated as
// immutable afterwards.
//
// The field layout follows the historic record: a little-endian int32 id,
// int64 value, int64 signing time, then the signature prefixed by its
// variable length integer size. The same layout is used on disk.
type Spork struct {
	// ID identifies the configuration value being set.
	ID int32

	// Value is the new value. Boolean sporks encode "on" as a timestamp
	// in the past and "off" as one far in the future.
	Value int64

	// SignedAt is the time (or, for some sporks, block height) at which
	// the value was signed. Newer messages supersede older ones.
	SignedAt int64

	// Signature authenticates the three fields above against the
	// network's spork key.
	Signature []byte
}

// A compile time check to ensure Spork implements the sporkwire.Message
// interface.
var _ Message = (*Spork)(nil)

// Decode deserializes a serialized Spork message stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the sporkwire.Message interface.
func (s *Spork) Decode(r io.Reader, pver uint32) error {
	err := readElements(r, &s.ID, &s.Value, &s.SignedAt)
	if err != nil {
		return err
	}

	sig, err := wire.ReadVarBytes(r, pver, MaxSignatureLen, "signature")
	if err != nil {
		return err
	}
	s.Signature = sig

	return nil
}

// Encode serializes the target Spork into the passed bytes.Buffer observing
// the protocol version specified.
//
// This is part of the sporkwire.Message interface.
func (s *Spork) Encode(w *bytes.Buffer, pver uint32) error {
	if len(s.Signature) > MaxSignatureLen {
		return fmt.Errorf("signature too long: %d bytes",
			len(s.Signature))
	}

	if err := writeElements(w, s.ID, s.Value, s.SignedAt); err != nil {
		return err
	}

	return wire.WriteVarBytes(w, pver, s.Signature)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the sporkwire.Message interface.
func (s *Spork) MsgType() MessageType {
	return MsgSpork
}

// Hash returns the content hash of the message. Only the id, value and
// signing time are committed to, so two messages that differ only in their
// signature share a hash.
func (s *Spork) Hash() chainhash.Hash {
	var b [4 + 8 + 8]byte
	binary.LittleEndian.PutUint32(b[0:4], uint32(s.ID))
	binary.LittleEndian.PutUint64(b[4:12], uint64(s.Value))
	binary.LittleEndian.PutUint64(b[12:20], uint64(s.SignedAt))

	return chainhash.DoubleHashH(b[:])
}

// Copy returns a deep copy of the message, so the signature slice of the
// copy can't be mutated through the original.
func (s *Spork) Copy() Spork {
	c := *s
	if s.Signature != nil {
		c.Signature = append([]byte(nil), s.Signature...)
	}

	return c
}

// String returns a short human readable description of the message.
func (s *Spork) String() string {
	return fmt.Sprintf("spork(id=%d, value=%d, signed_at=%d)", s.ID,
		s.Value, s.SignedAt)
}
