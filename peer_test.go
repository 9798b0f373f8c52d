package sporkd

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testTimeout = 5 * time.Second

// peerHarness couples a started peer with the remote end of its connection.
type peerHarness struct {
	peer         *peer
	remote       net.Conn
	pingTicker   *ticker.Force
	handled      chan sporkwire.Message
	disconnected chan struct{}
}

func newPeerHarness(t *testing.T, limiter *rate.Limiter) *peerHarness {
	t.Helper()

	local, remote := net.Pipe()

	h := &peerHarness{
		remote:       remote,
		pingTicker:   ticker.NewForce(time.Hour),
		handled:      make(chan sporkwire.Message, 10),
		disconnected: make(chan struct{}),
	}

	h.peer = newPeer(&peerConfig{
		Conn:             local,
		ID:               7,
		Inbound:          true,
		PingTicker:       h.pingTicker,
		GetSporksLimiter: limiter,
		WriteTimeout:     testTimeout,
		HandleMessage: func(_ *peer, msg sporkwire.Message) {
			h.handled <- msg
		},
		OnDisconnect: func(*peer) {
			close(h.disconnected)
		},
	})
	require.NoError(t, h.peer.Start())

	t.Cleanup(func() {
		h.peer.Disconnect(ErrPeerExiting)
		h.peer.WaitForDisconnect()
		remote.Close()
	})

	return h
}

func (h *peerHarness) send(t *testing.T, msg sporkwire.Message) {
	t.Helper()

	require.NoError(t, h.remote.SetWriteDeadline(time.Now().Add(testTimeout)))
	_, err := sporkwire.WriteMessage(h.remote, msg, 0)
	require.NoError(t, err)
}

func (h *peerHarness) receive(t *testing.T) sporkwire.Message {
	t.Helper()

	require.NoError(t, h.remote.SetReadDeadline(time.Now().Add(testTimeout)))
	msg, err := sporkwire.ReadMessage(h.remote, 0)
	require.NoError(t, err)

	return msg
}

// TestPeerPingPong checks pings are answered and sent on ticks.
func TestPeerPingPong(t *testing.T) {
	t.Parallel()

	h := newPeerHarness(t, nil)

	h.send(t, sporkwire.NewPing(42))
	require.Equal(t, sporkwire.NewPong(42), h.receive(t))

	h.pingTicker.Force <- time.Now()
	msg := h.receive(t)
	require.IsType(t, &sporkwire.Ping{}, msg)
}

// TestPeerSendMessage checks queued messages reach the remote in order.
func TestPeerSendMessage(t *testing.T) {
	t.Parallel()

	h := newPeerHarness(t, nil)

	first := &sporkwire.Spork{
		ID: 10001, Value: 1, SignedAt: 2, Signature: []byte{1},
	}
	second := &sporkwire.Spork{
		ID: 10002, Value: 3, SignedAt: 4, Signature: []byte{2},
	}
	require.NoError(t, h.peer.SendMessage(first, second))

	require.Equal(t, first, h.receive(t))
	require.Equal(t, second, h.receive(t))
}

// TestPeerDispatch checks protocol messages are handed over and unknown
// message types are skipped without dropping the connection.
func TestPeerDispatch(t *testing.T) {
	t.Parallel()

	h := newPeerHarness(t, nil)

	// A message of an unknown type with a three byte payload.
	var raw [9]byte
	binary.BigEndian.PutUint16(raw[:2], 999)
	binary.BigEndian.PutUint32(raw[2:6], 3)
	_, err := h.remote.Write(raw[:])
	require.NoError(t, err)

	msg := &sporkwire.Spork{
		ID: 10004, Value: 5, SignedAt: 6, Signature: []byte{3},
	}
	h.send(t, msg)

	select {
	case got := <-h.handled:
		require.Equal(t, msg, got)
	case <-time.After(testTimeout):
		t.Fatal("message not handled")
	}

	h.send(t, sporkwire.NewPing(1))
	require.Equal(t, sporkwire.NewPong(1), h.receive(t))
	require.Empty(t, h.handled)
}

// TestPeerGetSporksRateLimit checks getsporks requests beyond the limit are
// dropped.
func TestPeerGetSporksRateLimit(t *testing.T) {
	t.Parallel()

	h := newPeerHarness(t, rate.NewLimiter(0, 1))

	h.send(t, &sporkwire.GetSporks{})
	h.send(t, &sporkwire.GetSporks{})

	// The pong is only written after both requests were processed.
	h.send(t, sporkwire.NewPing(9))
	require.Equal(t, sporkwire.NewPong(9), h.receive(t))

	require.Len(t, h.handled, 1)
}

// TestPeerDisconnectOnReadError checks a closed connection tears the peer
// down exactly once.
func TestPeerDisconnectOnReadError(t *testing.T) {
	t.Parallel()

	h := newPeerHarness(t, nil)
	require.NoError(t, h.remote.Close())

	select {
	case <-h.disconnected:
	case <-time.After(testTimeout):
		t.Fatal("peer not disconnected")
	}

	h.peer.WaitForDisconnect()
	require.ErrorIs(
		t, h.peer.SendMessage(&sporkwire.GetSporks{}), ErrPeerExiting,
	)

	// A second disconnect is a no-op.
	h.peer.Disconnect(ErrPeerExiting)
}
