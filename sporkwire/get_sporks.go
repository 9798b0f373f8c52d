package sporkwire

import (
	"bytes"
	"io"
)

// GetSporks asks the remote peer to send every spork it currently considers
// active. It carries no payload.
type GetSporks struct{}

// A compile time check to ensure GetSporks implements the sporkwire.Message
// interface.
var _ Message = (*GetSporks)(nil)

// Decode deserializes a serialized GetSporks message stored in the passed
// io.Reader observing the specified protocol version.
//
// This is part of the sporkwire.Message interface.
func (g *GetSporks) Decode(r io.Reader, pver uint32) error {
	return nil
}

// Encode serializes the target GetSporks into the passed bytes.Buffer
// observing the protocol version specified.
//
// This is part of the sporkwire.Message interface.
func (g *GetSporks) Encode(w *bytes.Buffer, pver uint32) error {
	return nil
}

// MsgType returns the integer uniquely identifying this message type on the
// wire.
//
// This is part of the sporkwire.Message interface.
func (g *GetSporks) MsgType() MessageType {
	return MsgGetSporks
}
