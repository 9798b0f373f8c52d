package monitoring

import (
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkcfg"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestObserveOutcome checks outcomes are counted per label.
func TestObserveOutcome(t *testing.T) {
	t.Parallel()

	m := New(func() int { return 3 })

	m.ObserveOutcome(10001, spork.OutcomeAccepted)
	m.ObserveOutcome(10001, spork.OutcomeStale)
	m.ObserveOutcome(10002, spork.OutcomeStale)
	m.LocalUpdate()
	m.PeerConnected()
	m.PeerConnected()
	m.PeerDisconnected()

	require.Equal(t, 1.0, testutil.ToFloat64(
		m.outcomes.WithLabelValues("accepted"),
	))
	require.Equal(t, 2.0, testutil.ToFloat64(
		m.outcomes.WithLabelValues("stale"),
	))
	require.Equal(t, 1.0, testutil.ToFloat64(m.updates))
	require.Equal(t, 1.0, testutil.ToFloat64(m.activePeers))
}

// TestExporter scrapes the metrics endpoint.
func TestExporter(t *testing.T) {
	t.Parallel()

	// Grab a free port.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	m := New(func() int { return 7 })
	m.ObserveOutcome(10001, spork.OutcomeInvalidSignature)

	require.NoError(t, m.Start(sporkcfg.Prometheus{
		Enable: true,
		Listen: addr,
	}))
	t.Cleanup(func() {
		require.NoError(t, m.Stop())
	})

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body),
		`sporkd_spork_messages_total{outcome="invalid_signature"} 1`)
	require.Contains(t, string(body), "sporkd_spork_active 7")
}

// TestExporterDisabled checks nothing is started when disabled.
func TestExporterDisabled(t *testing.T) {
	t.Parallel()

	m := New(nil)
	require.NoError(t, m.Start(sporkcfg.DefaultPrometheus()))
	require.NoError(t, m.Stop())
}
