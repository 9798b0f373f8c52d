package sporkwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// genSpork generates an arbitrary Spork message.
func genSpork(t *rapid.T) *Spork {
	return &Spork{
		ID:       rapid.Int32().Draw(t, "id"),
		Value:    rapid.Int64().Draw(t, "value"),
		SignedAt: rapid.Int64().Draw(t, "signed_at"),
		Signature: rapid.SliceOfN(
			rapid.Byte(), 0, MaxSignatureLen,
		).Draw(t, "sig"),
	}
}

// TestSporkEncodeDecode asserts that any Spork survives a trip through
// WriteMessage and ReadMessage unchanged.
func TestSporkEncodeDecode(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		msg := genSpork(t)

		var b bytes.Buffer
		n, err := WriteMessage(&b, msg, 0)
		require.NoError(t, err)
		require.Equal(t, b.Len(), n)

		decoded, err := ReadMessage(&b, 0)
		require.NoError(t, err)

		got, ok := decoded.(*Spork)
		require.True(t, ok)
		require.Equal(t, msg.ID, got.ID)
		require.Equal(t, msg.Value, got.Value)
		require.Equal(t, msg.SignedAt, got.SignedAt)
		require.Equal(t, len(msg.Signature), len(got.Signature))
		if len(msg.Signature) > 0 {
			require.Equal(t, msg.Signature, got.Signature)
		}
	})
}

// TestSporkPayloadLayout checks the exact byte layout of a spork payload so
// the record format can't drift silently.
func TestSporkPayloadLayout(t *testing.T) {
	t.Parallel()

	msg := &Spork{
		ID:        10001,
		Value:     978307200,
		SignedAt:  1500000000,
		Signature: []byte{0xaa, 0xbb},
	}

	var b bytes.Buffer
	require.NoError(t, msg.Encode(&b, 0))

	raw := b.Bytes()
	require.Len(t, raw, 4+8+8+1+2)
	require.Equal(t, uint32(10001), binary.LittleEndian.Uint32(raw[0:4]))
	require.Equal(
		t, uint64(978307200), binary.LittleEndian.Uint64(raw[4:12]),
	)
	require.Equal(
		t, uint64(1500000000), binary.LittleEndian.Uint64(raw[12:20]),
	)
	require.Equal(t, byte(2), raw[20])
	require.Equal(t, []byte{0xaa, 0xbb}, raw[21:])
}

// TestSporkHashIgnoresSignature asserts the content hash commits only to the
// scalar fields.
func TestSporkHashIgnoresSignature(t *testing.T) {
	t.Parallel()

	a := &Spork{ID: 10004, Value: 1000, SignedAt: 42, Signature: []byte{1}}
	b := &Spork{ID: 10004, Value: 1000, SignedAt: 42, Signature: []byte{2}}
	c := &Spork{ID: 10004, Value: 1001, SignedAt: 42, Signature: []byte{1}}

	require.Equal(t, a.Hash(), b.Hash())
	require.NotEqual(t, a.Hash(), c.Hash())
}

// TestReadMessageStream asserts that several messages written back to back
// can be read in order, including the empty GetSporks payload.
func TestReadMessageStream(t *testing.T) {
	t.Parallel()

	msgs := []Message{
		&GetSporks{},
		NewPing(7),
		&Spork{ID: 10002, Value: 5, SignedAt: 6, Signature: []byte{9}},
		NewPong(7),
	}

	var b bytes.Buffer
	for _, msg := range msgs {
		_, err := WriteMessage(&b, msg, 0)
		require.NoError(t, err)
	}

	for _, want := range msgs {
		got, err := ReadMessage(&b, 0)
		require.NoError(t, err)
		require.Equal(t, want.MsgType(), got.MsgType())
	}

	_, err := ReadMessage(&b, 0)
	require.ErrorIs(t, err, io.EOF)
}

// TestReadMessageUnknownType asserts that an unknown message type is reported
// without desynchronising the stream.
func TestReadMessageUnknownType(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer

	var hdr [headerLen]byte
	binary.BigEndian.PutUint16(hdr[:2], 0x7fff)
	binary.BigEndian.PutUint32(hdr[2:], 3)
	b.Write(hdr[:])
	b.Write([]byte{1, 2, 3})

	_, err := WriteMessage(&b, &GetSporks{}, 0)
	require.NoError(t, err)

	_, err = ReadMessage(&b, 0)
	var unknown *UnknownMessage
	require.True(t, errors.As(err, &unknown))

	msg, err := ReadMessage(&b, 0)
	require.NoError(t, err)
	require.Equal(t, MessageType(MsgGetSporks), msg.MsgType())
}

// TestReadMessageTooLarge asserts that a header announcing an oversized
// payload is rejected before the payload is read.
func TestReadMessageTooLarge(t *testing.T) {
	t.Parallel()

	var hdr [headerLen]byte
	binary.BigEndian.PutUint16(hdr[:2], uint16(MsgSpork))
	binary.BigEndian.PutUint32(hdr[2:], MaxMsgBody+1)

	_, err := ReadMessage(bytes.NewReader(hdr[:]), 0)
	require.Error(t, err)
}

// TestSporkDecodeTruncated asserts that a truncated payload fails to decode.
func TestSporkDecodeTruncated(t *testing.T) {
	t.Parallel()

	msg := &Spork{ID: 10001, Value: 1, SignedAt: 2, Signature: []byte{3, 4}}

	var b bytes.Buffer
	require.NoError(t, msg.Encode(&b, 0))
	raw := b.Bytes()

	for i := 0; i < len(raw); i++ {
		var s Spork
		err := s.Decode(bytes.NewReader(raw[:i]), 0)
		require.Error(t, err, "prefix of %d bytes decoded", i)
	}
}

// TestSporkEncodeSignatureTooLong asserts oversized signatures are refused.
func TestSporkEncodeSignatureTooLong(t *testing.T) {
	t.Parallel()

	msg := &Spork{Signature: make([]byte, MaxSignatureLen+1)}

	var b bytes.Buffer
	_, err := WriteMessage(&b, msg, 0)
	require.Error(t, err)
	require.Zero(t, b.Len())
}
