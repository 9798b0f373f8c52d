// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// code derived from https://github .com/btcsuite/btcd/blob/master/wire/message.go
// Copyright (C) 2015-2022 The Lightning Network Developers

package sporkwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// MaxMsgBody is the largest payload any message is allowed to provide.
	MaxMsgBody = 65533

	// headerLen is the size of the message header: a 2-byte type followed
	// by a 4-byte payload length.
	headerLen = 6
)

// MessageType is the unique 2 byte big-endian integer that indicates the type
// of message on the wire. Every message is preceded by a header made of the
// message type and the length of the payload that follows it.
type MessageType uint16

// The currently defined message types of the spork protocol.
const (
	MsgSpork     MessageType = 1
	MsgGetSporks             = 2
	MsgPing                  = 18
	MsgPong                  = 19
)

// ErrorEncodeMessage is used when failed to encode the message payload.
func ErrorEncodeMessage(err error) error {
	return fmt.Errorf("failed to encode message to buffer, got %w", err)
}

// ErrorPayloadTooLarge is used when the payload size exceeds the
// MaxMsgBody.
func ErrorPayloadTooLarge(size int) error {
	return fmt.Errorf(
		"message payload is too large - encoded %d bytes, "+
			"but maximum message payload is %d bytes",
		size, MaxMsgBody,
	)
}

// String return the string representation of message type.
func (t MessageType) String() string {
	switch t {
	case MsgSpork:
		return "Spork"
	case MsgGetSporks:
		return "GetSporks"
	case MsgPing:
		return "Ping"
	case MsgPong:
		return "Pong"
	default:
		return "<unknown>"
	}
}

// UnknownMessage is an implementation of the error interface that allows the
// creation of an error in response to an unknown message. The payload of the
// unknown message has already been consumed when this error is returned, so
// the reader remains positioned at the start of the next message.
type UnknownMessage struct {
	messageType MessageType
}

// Error returns a human readable string describing the error.
//
// This is part of the error interface.
func (u *UnknownMessage) Error() string {
	return fmt.Sprintf("unable to parse message of unknown type: %v",
		u.messageType)
}

// Serializable is an interface which defines a spork wire serializable
// object.
type Serializable interface {
	// Decode reads the bytes stream and converts it to the object.
	Decode(io.Reader, uint32) error

	// Encode converts object to the bytes stream and write it into the
	// write buffer.
	Encode(*bytes.Buffer, uint32) error
}

// Message is an interface that defines a spork wire protocol message. The
// interface is general in order to allow implementing types full control over
// the representation of its data.
type Message interface {
	Serializable
	MsgType() MessageType
}

// makeEmptyMessage creates a new empty message of the proper concrete type
// based on the passed message type.
func makeEmptyMessage(msgType MessageType) (Message, error) {
	var msg Message

	switch msgType {
	case MsgSpork:
		msg = &Spork{}
	case MsgGetSporks:
		msg = &GetSporks{}
	case MsgPing:
		msg = &Ping{}
	case MsgPong:
		msg = &Pong{}
	default:
		return nil, &UnknownMessage{msgType}
	}

	return msg, nil
}

// WriteMessage writes a spork Message to w including the necessary header
// information and returns the number of bytes written. The message is fully
// encoded before anything is written, so either all or none of the message
// bytes reach w unless w itself fails mid-write.
func WriteMessage(w io.Writer, msg Message, pver uint32) (int, error) {
	var payload bytes.Buffer
	if err := msg.Encode(&payload, pver); err != nil {
		return 0, ErrorEncodeMessage(err)
	}

	lenp := payload.Len()
	if lenp > MaxMsgBody {
		return 0, ErrorPayloadTooLarge(lenp)
	}

	var hdr [headerLen]byte
	binary.BigEndian.PutUint16(hdr[:2], uint16(msg.MsgType()))
	binary.BigEndian.PutUint32(hdr[2:], uint32(lenp))

	n, err := w.Write(hdr[:])
	if err != nil {
		return n, err
	}

	m, err := w.Write(payload.Bytes())

	return n + m, err
}

// ReadMessage reads, validates, and parses the next spork message from r for
// the provided protocol version.
func ReadMessage(r io.Reader, pver uint32) (Message, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	msgType := MessageType(binary.BigEndian.Uint16(hdr[:2]))
	lenp := binary.BigEndian.Uint32(hdr[2:])
	if lenp > MaxMsgBody {
		return nil, ErrorPayloadTooLarge(int(lenp))
	}

	payload := make([]byte, lenp)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	// Now that we know the target message type, we can create the proper
	// empty message type and decode the message into it.
	msg, err := makeEmptyMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := msg.Decode(bytes.NewReader(payload), pver); err != nil {
		return nil, err
	}

	return msg, nil
}
