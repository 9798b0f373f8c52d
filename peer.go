package sporkd

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/connmgr"
	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightningnetwork/lnd/queue"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/time/rate"
)

const (
	// outgoingQueueLen is the buffer size of the channel which houses
	// messages to be sent across the wire, requested by objects outside
	// this struct.
	outgoingQueueLen = 50

	// protocolVersion is the version passed to the message codec.
	protocolVersion = 0
)

// ErrPeerExiting signals that the peer received a disconnect request.
var ErrPeerExiting = errors.New("peer exiting")

// peerConfig holds everything a peer needs to run.
type peerConfig struct {
	// Conn is the underlying network connection.
	Conn net.Conn

	// ID is the locally unique id of the connection.
	ID int32

	// Inbound is true if the remote side initiated the connection.
	Inbound bool

	// ConnReq is the connection request of an outbound connection made
	// through the connection manager. It is nil for inbound peers.
	ConnReq *connmgr.ConnReq

	// PingTicker decides when a ping is sent to the remote peer.
	PingTicker ticker.Ticker

	// GetSporksLimiter bounds how often the remote peer may request our
	// sporks. A nil limiter means no limit.
	GetSporksLimiter *rate.Limiter

	// WriteTimeout is the deadline for writing a single message.
	WriteTimeout time.Duration

	// HandleMessage is called on the read goroutine for every spork
	// protocol message the remote peer sends.
	HandleMessage func(p *peer, msg sporkwire.Message)

	// OnDisconnect is called once, after both handler goroutines exited.
	OnDisconnect func(p *peer)
}

// peer is an active connection to a remote node speaking the spork protocol.
type peer struct {
	started    atomic.Bool
	disconnect atomic.Bool

	cfg *peerConfig

	// outgoingQueue buffers every message waiting to be written.
	outgoingQueue *queue.ConcurrentQueue

	quit chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// A compile-time check to ensure peer implements the spork.Peer interface.
var _ spork.Peer = (*peer)(nil)

// newPeer creates a peer for the given connection. Start must be called
// before messages are exchanged.
func newPeer(cfg *peerConfig) *peer {
	return &peer{
		cfg:           cfg,
		outgoingQueue: queue.NewConcurrentQueue(outgoingQueueLen),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// ID returns the locally unique id of the connection.
//
// NOTE: Part of the spork.Peer interface.
func (p *peer) ID() int32 {
	return p.cfg.ID
}

// String returns the remote address of the peer.
func (p *peer) String() string {
	return p.cfg.Conn.RemoteAddr().String()
}

// host returns the remote host of the peer without the port. Misbehavior
// is tracked per host.
func (p *peer) host() string {
	return remoteHost(p.cfg.Conn)
}

// Start launches the read and write goroutines of the peer.
func (p *peer) Start() error {
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}

	peerLog.Debugf("Starting peer %d (%v, inbound=%v)", p.ID(), p,
		p.cfg.Inbound)

	p.outgoingQueue.Start()
	p.cfg.PingTicker.Resume()

	p.wg.Add(2)
	go p.inHandler()
	go p.outHandler()

	return nil
}

// Disconnect closes the connection and stops the peer's goroutines. It is
// safe to call more than once and from any goroutine.
func (p *peer) Disconnect(reason error) {
	if !p.disconnect.CompareAndSwap(false, true) {
		return
	}

	peerLog.Infof("Disconnecting peer %d (%v): %v", p.ID(), p, reason)

	p.cfg.Conn.Close()
	close(p.quit)

	go func() {
		p.wg.Wait()

		p.outgoingQueue.Stop()
		p.cfg.PingTicker.Stop()

		if p.cfg.OnDisconnect != nil {
			p.cfg.OnDisconnect(p)
		}

		close(p.done)
	}()
}

// WaitForDisconnect blocks until the peer has fully shut down.
func (p *peer) WaitForDisconnect() {
	<-p.done
}

// SendMessage queues the messages for sending to the remote peer, in order.
//
// NOTE: Part of the spork.Peer interface.
func (p *peer) SendMessage(msgs ...sporkwire.Message) error {
	if p.disconnect.Load() {
		return ErrPeerExiting
	}

	for _, msg := range msgs {
		select {
		case p.outgoingQueue.ChanIn() <- msg:
		case <-p.quit:
			return ErrPeerExiting
		}
	}

	return nil
}

// inHandler reads messages from the connection until it fails or the peer is
// disconnected.
func (p *peer) inHandler() {
	defer p.wg.Done()

	for !p.disconnect.Load() {
		nextMsg, err := sporkwire.ReadMessage(p.cfg.Conn, protocolVersion)
		if err != nil {
			// Messages of types we don't understand are skipped,
			// their payload is already consumed.
			var unknownErr *sporkwire.UnknownMessage
			if errors.As(err, &unknownErr) {
				peerLog.Debugf("Peer %d: %v", p.ID(), err)
				continue
			}

			p.Disconnect(fmt.Errorf("read failed: %w", err))

			return
		}

		peerLog.Tracef("Peer %d: received %v", p.ID(),
			nextMsg.MsgType())

		switch msg := nextMsg.(type) {
		case *sporkwire.Ping:
			_ = p.SendMessage(sporkwire.NewPong(msg.Nonce))

		case *sporkwire.Pong:

		case *sporkwire.GetSporks:
			limiter := p.cfg.GetSporksLimiter
			if limiter != nil && !limiter.Allow() {
				peerLog.Debugf("Peer %d: dropping rate limited "+
					"getsporks", p.ID())
				continue
			}

			p.cfg.HandleMessage(p, msg)

		default:
			p.cfg.HandleMessage(p, msg)
		}
	}
}

// writeMessage writes a single message to the connection, bounded by the
// write timeout.
func (p *peer) writeMessage(msg sporkwire.Message) error {
	if p.disconnect.Load() {
		return ErrPeerExiting
	}

	if p.cfg.WriteTimeout > 0 {
		deadline := time.Now().Add(p.cfg.WriteTimeout)
		if err := p.cfg.Conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
	}

	_, err := sporkwire.WriteMessage(p.cfg.Conn, msg, protocolVersion)

	return err
}

// outHandler writes queued messages and periodic pings to the connection.
func (p *peer) outHandler() {
	defer p.wg.Done()

	for {
		select {
		case item := <-p.outgoingQueue.ChanOut():
			msg, ok := item.(sporkwire.Message)
			if !ok {
				continue
			}

			if err := p.writeMessage(msg); err != nil {
				p.Disconnect(fmt.Errorf("write failed: %w",
					err))

				return
			}

		case <-p.cfg.PingTicker.Ticks():
			ping := sporkwire.NewPing(rand.Uint64())
			if err := p.writeMessage(ping); err != nil {
				p.Disconnect(fmt.Errorf("ping failed: %w", err))

				return
			}

		case <-p.quit:
			return
		}
	}
}
