package spork

import (
	"errors"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

var (
	testTime = time.Unix(1700000000, 0)

	trustPriv, trustPub = btcec.PrivKeyFromBytes([]byte{
		0x2b, 0xd8, 0x06, 0xc9, 0x7f, 0x0e, 0x00, 0xaf,
		0x1a, 0x1f, 0xc3, 0x32, 0x8f, 0xa7, 0x63, 0xa9,
		0x26, 0x97, 0x23, 0xc8, 0xdb, 0x8f, 0xac, 0x4f,
		0x93, 0xaf, 0x71, 0xdb, 0x18, 0x6d, 0x6e, 0x90,
	})

	otherPriv, _ = btcec.PrivKeyFromBytes([]byte{
		0x81, 0xb6, 0x37, 0xd8, 0xfc, 0xd2, 0xc6, 0xda,
		0x63, 0x59, 0xe6, 0x96, 0x31, 0x13, 0xa1, 0x17,
		0x0d, 0xe7, 0x95, 0xe4, 0xb7, 0x25, 0xb8, 0x4d,
		0x1e, 0x0b, 0x4c, 0xfd, 0x9e, 0xc5, 0x8c, 0xe9,
	})

	errStoreDown = errors.New("store down")
)

// signedSpork returns a message signed by key over the default magic.
func signedSpork(t require.TestingT, key *btcec.PrivateKey, id ID, value,
	signedAt int64) *sporkwire.Spork {

	msg := &sporkwire.Spork{
		ID:       int32(id),
		Value:    value,
		SignedAt: signedAt,
	}
	sig, err := signSpork(key, DefaultMessageMagic, msg)
	require.NoError(t, err)
	msg.Signature = sig

	return msg
}

// mockStore is an in-memory Store.
type mockStore struct {
	mu      sync.Mutex
	sporks  map[ID]sporkwire.Spork
	writes  int
	failIDs map[ID]struct{}
	failAll bool
}

func newMockStore() *mockStore {
	return &mockStore{
		sporks:  make(map[ID]sporkwire.Spork),
		failIDs: make(map[ID]struct{}),
	}
}

func (m *mockStore) ReadSpork(id ID) (fn.Option[sporkwire.Spork], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.failIDs[id]; ok || m.failAll {
		return fn.None[sporkwire.Spork](), errStoreDown
	}

	msg, ok := m.sporks[id]
	if !ok {
		return fn.None[sporkwire.Spork](), nil
	}

	return fn.Some(msg.Copy()), nil
}

func (m *mockStore) WriteSpork(id ID, msg *sporkwire.Spork) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.failIDs[id]; ok || m.failAll {
		return errStoreDown
	}

	m.writes++
	m.sporks[id] = msg.Copy()

	return nil
}

func (m *mockStore) get(id ID) (sporkwire.Spork, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.sporks[id]
	return msg, ok
}

func (m *mockStore) numWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.writes
}

// mockPeer records everything sent to it.
type mockPeer struct {
	id int32

	mu   sync.Mutex
	sent []sporkwire.Message
}

func (p *mockPeer) ID() int32 {
	return p.id
}

func (p *mockPeer) SendMessage(msgs ...sporkwire.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sent = append(p.sent, msgs...)

	return nil
}

func (p *mockPeer) sentSporks() []sporkwire.Spork {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sporks []sporkwire.Spork
	for _, msg := range p.sent {
		if s, ok := msg.(*sporkwire.Spork); ok {
			sporks = append(sporks, *s)
		}
	}

	return sporks
}

// broadcastCall is one invocation of the Broadcast callback.
type broadcastCall struct {
	skips map[int32]struct{}
	msgs  []sporkwire.Message
}

// report is one invocation of the ReportMisbehavior callback.
type report struct {
	peer  int32
	score uint32
}

// testHarness wires a table, manager and handler to mocks.
type testHarness struct {
	table    *Table
	store    *mockStore
	clock    *clock.TestClock
	manager  *Manager
	handler  *Handler
	resolver *Resolver

	mu         sync.Mutex
	broadcasts []broadcastCall
	reports    []report
	outcomes   []Outcome
	chainReady bool
	height     int32
}

func newTestHarness(t require.TestingT) *testHarness {
	h := &testHarness{
		table:      NewTable(DefaultHistorySize),
		store:      newMockStore(),
		clock:      clock.NewTestClock(testTime),
		chainReady: true,
	}

	h.manager = NewManager(&ManagerConfig{
		TrustKey: trustPub,
		Table:    h.table,
		Store:    h.store,
		Clock:    h.clock,
		Broadcast: func(skips map[int32]struct{},
			msgs ...sporkwire.Message) error {

			h.mu.Lock()
			defer h.mu.Unlock()

			h.broadcasts = append(h.broadcasts, broadcastCall{
				skips: skips,
				msgs:  msgs,
			})

			return nil
		},
	})

	h.handler = NewHandler(&HandlerConfig{
		Manager: h.manager,
		Table:   h.table,
		ChainReady: func() bool {
			h.mu.Lock()
			defer h.mu.Unlock()

			return h.chainReady
		},
		ReportMisbehavior: func(p Peer, score uint32, _ string) {
			h.mu.Lock()
			defer h.mu.Unlock()

			h.reports = append(h.reports, report{
				peer:  p.ID(),
				score: score,
			})
		},
		NotifyOutcome: func(_ ID, o Outcome) {
			h.mu.Lock()
			defer h.mu.Unlock()

			h.outcomes = append(h.outcomes, o)
		},
	})

	h.resolver = NewResolver(h.table, h.clock, func() (int32, error) {
		h.mu.Lock()
		defer h.mu.Unlock()

		return h.height, nil
	})

	return h
}

func (h *testHarness) numBroadcasts() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.broadcasts)
}

func (h *testHarness) lastBroadcast() broadcastCall {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.broadcasts[len(h.broadcasts)-1]
}

func (h *testHarness) misbehaviorReports() []report {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]report(nil), h.reports...)
}
