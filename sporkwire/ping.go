package sporkwire

import (
	"bytes"
	"io"
)

// Ping defines a message which is sent by peers periodically to determine if
// the connection is still valid. The receiver answers with a Pong carrying
// the same nonce.
type Ping struct {
	// Nonce is a random value echoed back by the Pong reply.
	Nonce uint64
}

// NewPing returns a new Ping message with the given nonce.
func NewPing(nonce uint64) *Ping {
	return &Ping{
		Nonce: nonce,
	}
}

// A compile time check to ensure Ping implements the sporkwire.Message
// interface.
var _ Message = (*Ping)(nil)

// Decode deserializes a serialized Ping message stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the sporkwire.Message interface.
func (p *Ping) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &p.Nonce)
}

// Encode serializes the target Ping into the passed bytes.Buffer observing the
// protocol version specified.
//
// This is part of the sporkwire.Message interface.
func (p *Ping) Encode(w *bytes.Buffer, pver uint32) error {
	return writeElements(w, p.Nonce)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the sporkwire.Message interface.
func (p *Ping) MsgType() MessageType {
	return MsgPing
}

// Pong defines a message which is the direct response to a received Ping
// message. A Pong reply indicates that a connection is still active.
type Pong struct {
	// Nonce is the nonce of the Ping message this Pong is replying to.
	Nonce uint64
}

// NewPong returns a new Pong message bound to the specified nonce.
func NewPong(nonce uint64) *Pong {
	return &Pong{
		Nonce: nonce,
	}
}

// A compile time check to ensure Pong implements the sporkwire.Message
// interface.
var _ Message = (*Pong)(nil)

// Decode deserializes a serialized Pong message stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the sporkwire.Message interface.
func (p *Pong) Decode(r io.Reader, pver uint32) error {
	return readElements(r, &p.Nonce)
}

// Encode serializes the target Pong into the passed bytes.Buffer observing the
// protocol version specified.
//
// This is part of the sporkwire.Message interface.
func (p *Pong) Encode(w *bytes.Buffer, pver uint32) error {
	return writeElements(w, p.Nonce)
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the sporkwire.Message interface.
func (p *Pong) MsgType() MessageType {
	return MsgPong
}
