package sporkd

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/connmgr"
	"github.com/catocoin/sporkd/monitoring"
	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkcfg"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"golang.org/x/time/rate"
)

// dialTimeout bounds how long an outbound connection attempt may take.
const dialTimeout = 10 * time.Second

// serverConfig holds the dependencies and settings of the server.
type serverConfig struct {
	// Listeners accept inbound peer connections. They are owned by the
	// server once passed in.
	Listeners []net.Listener

	// ConnectPeers are the addresses we keep a permanent connection to.
	ConnectPeers []net.Addr

	// TrustKey is the public key sporks must be signed with.
	TrustKey *btcec.PublicKey

	// MessageMagic prefixes the signed message digest.
	MessageMagic string

	// HistorySize bounds the number of accepted messages kept by hash.
	HistorySize uint64

	// SigningKey is an optional WIF encoded spork private key.
	SigningKey string

	// Updates are authored with the signing key when the server starts,
	// before any peer connects.
	Updates []sporkcfg.SporkUpdate

	// Store persists accepted sporks. It may be nil.
	Store spork.Store

	// Metrics collects protocol statistics. It may be nil.
	Metrics *monitoring.Metrics

	// Clock is the time source. It may be nil.
	Clock clock.Clock

	// MaxPeers bounds the number of inbound peers. Zero means no bound.
	MaxPeers int

	// PingInterval is how often each peer is pinged.
	PingInterval time.Duration

	// WriteTimeout bounds a single message write.
	WriteTimeout time.Duration

	// RetryDuration is the delay between permanent connection attempts.
	RetryDuration time.Duration

	// GetSporksPerMin is the getsporks budget of each peer.
	GetSporksPerMin float64

	// BanThreshold is the misbehavior score that bans a host.
	BanThreshold uint64

	// BanDuration is how long a banned host is refused.
	BanDuration time.Duration
}

// server owns the spork state of the node and the connections to its peers.
// It relays accepted sporks to every peer except the one they came from.
type server struct {
	started  atomic.Bool
	shutdown atomic.Bool

	cfg *serverConfig

	table    *spork.Table
	manager  *spork.Manager
	handler  *spork.Handler
	resolver *spork.Resolver

	banman  *banman
	connMgr *connmgr.ConnManager

	peerCounter atomic.Int32

	peersMtx  sync.RWMutex
	peersByID map[int32]*peer
}

// newServer creates the server and loads the persisted sporks into its
// table. Start must be called to begin accepting and making connections.
func newServer(cfg *serverConfig) (*server, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	s := &server{
		cfg:       cfg,
		table:     spork.NewTable(cfg.HistorySize),
		peersByID: make(map[int32]*peer),
	}

	s.manager = spork.NewManager(&spork.ManagerConfig{
		TrustKey:     cfg.TrustKey,
		MessageMagic: cfg.MessageMagic,
		Table:        s.table,
		Store:        cfg.Store,
		Clock:        cfg.Clock,
		Broadcast:    s.Broadcast,
	})

	// The key's network is checked when the config is validated.
	if cfg.SigningKey != "" {
		err := s.manager.SetSigningKeyWIF(cfg.SigningKey)
		if err != nil {
			return nil, err
		}
	}

	s.handler = spork.NewHandler(&spork.HandlerConfig{
		Manager:           s.manager,
		Table:             s.table,
		ReportMisbehavior: s.reportMisbehavior,
		NotifyOutcome: func(id spork.ID, outcome spork.Outcome) {
			if cfg.Metrics != nil {
				cfg.Metrics.ObserveOutcome(id, outcome)
			}
		},
	})

	s.resolver = spork.NewResolver(s.table, cfg.Clock, nil)

	s.banman = newBanman(cfg.BanThreshold, cfg.BanDuration, cfg.Clock)

	if cfg.Store != nil {
		n := spork.LoadSporks(s.table, cfg.Store)
		srvrLog.Infof("Loaded %d sporks from the store", n)
	}

	cmgr, err := connmgr.New(&connmgr.Config{
		Listeners:     cfg.Listeners,
		OnAccept:      s.inboundPeerConnected,
		RetryDuration: cfg.RetryDuration,
		Dial:          dialTCP,
		OnConnection:  s.outboundPeerConnected,
	})
	if err != nil {
		return nil, err
	}
	s.connMgr = cmgr

	return s, nil
}

// dialTCP opens an outbound TCP connection.
func dialTCP(addr net.Addr) (net.Conn, error) {
	return net.DialTimeout(addr.Network(), addr.String(), dialTimeout)
}

// Start starts accepting inbound connections and connects to every
// configured peer.
func (s *server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	for _, update := range s.cfg.Updates {
		msg, err := s.UpdateSpork(update.ID, update.Value)
		if err != nil {
			return fmt.Errorf("unable to update spork %v: %w",
				update.ID, err)
		}
		srvrLog.Infof("Authored %v at startup", &msg)
	}

	s.banman.start()
	s.connMgr.Start()

	for _, addr := range s.cfg.ConnectPeers {
		s.ConnectToPeer(addr, true)
	}

	return nil
}

// Stop closes the listeners and every peer connection, then waits for the
// peers to exit.
func (s *server) Stop() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	s.connMgr.Stop()

	s.peersMtx.RLock()
	peers := make([]*peer, 0, len(s.peersByID))
	for _, p := range s.peersByID {
		peers = append(peers, p)
	}
	s.peersMtx.RUnlock()

	for _, p := range peers {
		p.Disconnect(ErrPeerExiting)
	}
	for _, p := range peers {
		p.WaitForDisconnect()
	}

	s.connMgr.Wait()
	s.banman.stop()

	return nil
}

// Table returns the spork table of the node.
func (s *server) Table() *spork.Table {
	return s.table
}

// Resolver answers spork value queries.
func (s *server) Resolver() *spork.Resolver {
	return s.resolver
}

// UpdateSpork authors, applies and relays a new value of id. The node must
// hold the spork signing key.
func (s *server) UpdateSpork(id spork.ID, value int64) (sporkwire.Spork,
	error) {

	msg, err := s.manager.UpdateSpork(id, value)
	if err != nil {
		return msg, err
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.LocalUpdate()
	}

	return msg, nil
}

// ConnectToPeer makes an outbound connection to addr. Permanent
// connections are retried until the server shuts down.
func (s *server) ConnectToPeer(addr net.Addr, permanent bool) {
	connReq := &connmgr.ConnReq{
		Addr:      addr,
		Permanent: permanent,
	}

	srvrLog.Debugf("Connecting to peer %v (permanent=%v)", addr,
		permanent)

	go s.connMgr.Connect(connReq)
}

// NumPeers returns the number of connected peers.
func (s *server) NumPeers() int {
	s.peersMtx.RLock()
	defer s.peersMtx.RUnlock()

	return len(s.peersByID)
}

// numInbound returns the number of connected inbound peers. The peers mutex
// must be held.
func (s *server) numInbound() int {
	var n int
	for _, p := range s.peersByID {
		if p.cfg.Inbound {
			n++
		}
	}

	return n
}

// remoteHost returns the host part of the connection's remote address.
func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}

// inboundPeerConnected initializes a new peer in response to a new inbound
// connection.
func (s *server) inboundPeerConnected(conn net.Conn) {
	srvrLog.Tracef("New inbound connection from %v", conn.RemoteAddr())

	if s.banman.isBanned(remoteHost(conn)) {
		srvrLog.Debugf("Dropping connection from banned host %v",
			conn.RemoteAddr())
		conn.Close()

		return
	}

	s.peersMtx.Lock()
	defer s.peersMtx.Unlock()

	if s.cfg.MaxPeers > 0 && s.numInbound() >= s.cfg.MaxPeers {
		srvrLog.Infof("Max peers reached, dropping connection from %v",
			conn.RemoteAddr())
		conn.Close()

		return
	}

	s.peerConnected(conn, nil, true)
}

// outboundPeerConnected initializes a new peer in response to a new outbound
// connection.
func (s *server) outboundPeerConnected(connReq *connmgr.ConnReq,
	conn net.Conn) {

	srvrLog.Tracef("Established connection to: %v", conn.RemoteAddr())

	if s.banman.isBanned(remoteHost(conn)) {
		srvrLog.Debugf("Dropping connection to banned host %v",
			conn.RemoteAddr())
		s.connMgr.Disconnect(connReq.ID())

		return
	}

	s.peersMtx.Lock()
	defer s.peersMtx.Unlock()

	s.peerConnected(conn, connReq, false)
}

// peerConnected creates and starts a peer for conn and asks it for its
// sporks. The peers mutex must be held.
func (s *server) peerConnected(conn net.Conn, connReq *connmgr.ConnReq,
	inbound bool) {

	if s.shutdown.Load() {
		conn.Close()
		return
	}

	// Each peer may request our sporks a few times a minute, with room
	// for one extra burst request.
	limit := rate.Limit(s.cfg.GetSporksPerMin / 60)
	limiter := rate.NewLimiter(limit, 2)

	p := newPeer(&peerConfig{
		Conn:             conn,
		ID:               s.peerCounter.Add(1),
		Inbound:          inbound,
		ConnReq:          connReq,
		PingTicker:       ticker.New(s.cfg.PingInterval),
		GetSporksLimiter: limiter,
		WriteTimeout:     s.cfg.WriteTimeout,
		HandleMessage:    s.handleMessage,
		OnDisconnect:     s.peerTerminated,
	})

	s.peersByID[p.ID()] = p

	if err := p.Start(); err != nil {
		srvrLog.Errorf("Unable to start peer %v: %v", p, err)
		delete(s.peersByID, p.ID())
		conn.Close()

		return
	}

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PeerConnected()
	}

	srvrLog.Infof("New peer %d (%v, inbound=%v)", p.ID(), p, inbound)

	if err := p.SendMessage(&sporkwire.GetSporks{}); err != nil {
		srvrLog.Debugf("Unable to request sporks from %v: %v", p, err)
	}
}

// peerTerminated removes the peer from the server and, for permanent
// outbound connections, schedules a reconnect.
func (s *server) peerTerminated(p *peer) {
	s.peersMtx.Lock()
	delete(s.peersByID, p.ID())
	s.peersMtx.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PeerDisconnected()
	}

	srvrLog.Debugf("Removed peer %d (%v)", p.ID(), p)

	if p.cfg.ConnReq == nil || s.shutdown.Load() {
		return
	}

	// The connection manager retries permanent requests on disconnect and
	// forgets the others.
	s.connMgr.Disconnect(p.cfg.ConnReq.ID())
}

// handleMessage passes a message received from p to the spork protocol.
func (s *server) handleMessage(p *peer, msg sporkwire.Message) {
	if !s.handler.ProcessMessage(p, msg) {
		peerLog.Debugf("Peer %d: ignoring %v message", p.ID(),
			msg.MsgType())
	}
}

// Broadcast queues msgs on every connected peer except those in skips.
func (s *server) Broadcast(skips map[int32]struct{},
	msgs ...sporkwire.Message) error {

	if s.shutdown.Load() {
		return spork.ErrRelayStopped
	}

	s.peersMtx.RLock()
	targets := make([]*peer, 0, len(s.peersByID))
	for id, p := range s.peersByID {
		if _, ok := skips[id]; ok {
			continue
		}
		targets = append(targets, p)
	}
	s.peersMtx.RUnlock()

	srvrLog.Debugf("Broadcasting %d messages to %d peers", len(msgs),
		len(targets))

	for _, p := range targets {
		err := p.SendMessage(msgs...)
		if err != nil && !errors.Is(err, ErrPeerExiting) {
			srvrLog.Warnf("Unable to send to peer %d: %v", p.ID(),
				err)
		}
	}

	return nil
}

// reportMisbehavior raises the ban score of the peer's host and disconnects
// the peer once the host is banned.
func (s *server) reportMisbehavior(sp spork.Peer, score uint32,
	reason string) {

	p, ok := sp.(*peer)
	if !ok {
		return
	}

	host := p.host()
	banned := s.banman.incrementBanScore(host, uint64(score))

	srvrLog.Infof("Peer %d (%v) misbehaved (+%d): %v", p.ID(), p, score,
		reason)

	if !banned {
		return
	}

	srvrLog.Warnf("Banning host %v: %v", host, reason)

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.PeerBanned()
	}

	p.Disconnect(fmt.Errorf("banned: %v", reason))
}
