package monitoring

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkcfg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "sporkd"

	subsystemSpork = "spork"
	subsystemPeer  = "peer"

	// shutdownTimeout bounds how long Stop waits for in-flight scrapes.
	shutdownTimeout = 5 * time.Second
)

// Metrics collects sporkd metrics on a private registry and optionally
// exports them over HTTP.
type Metrics struct {
	registry *prometheus.Registry

	outcomes    *prometheus.CounterVec
	updates     prometheus.Counter
	bans        prometheus.Counter
	activePeers prometheus.Gauge

	mu     sync.Mutex
	server *http.Server
	wg     sync.WaitGroup
}

// New creates the collectors. numActive reports the number of sporks with
// an accepted message and may be nil.
func New(numActive func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSpork,
			Name:      "messages_total",
			Help:      "inbound spork messages by outcome",
		}, []string{"outcome"}),
		updates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSpork,
			Name:      "local_updates_total",
			Help:      "sporks authored by this node",
		}),
		bans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPeer,
			Name:      "bans_total",
			Help:      "peers banned for misbehavior",
		}),
		activePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemPeer,
			Name:      "connected",
			Help:      "currently connected peers",
		}),
	}

	m.registry.MustRegister(
		m.outcomes, m.updates, m.bans, m.activePeers,
		prometheus.NewGoCollector(),
	)

	if numActive != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemSpork,
				Name:      "active",
				Help:      "spork ids with an accepted message",
			}, func() float64 {
				return float64(numActive())
			},
		))
	}

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOutcome counts the disposition of one inbound spork.
func (m *Metrics) ObserveOutcome(_ spork.ID, outcome spork.Outcome) {
	m.outcomes.WithLabelValues(outcome.String()).Inc()
}

// LocalUpdate counts a spork authored by this node.
func (m *Metrics) LocalUpdate() {
	m.updates.Inc()
}

// PeerBanned counts a ban.
func (m *Metrics) PeerBanned() {
	m.bans.Inc()
}

// PeerConnected tracks a new connection.
func (m *Metrics) PeerConnected() {
	m.activePeers.Inc()
}

// PeerDisconnected tracks a closed connection.
func (m *Metrics) PeerDisconnected() {
	m.activePeers.Dec()
}

// Start launches the exporter on cfg.Listen if exporting is enabled.
func (m *Metrics) Start(cfg sporkcfg.Prometheus) error {
	if !cfg.Enabled() {
		return nil
	}

	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		m.registry, promhttp.HandlerOpts{},
	))

	m.mu.Lock()
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := m.server
	m.mu.Unlock()

	log.Infof("Prometheus exporter started on %v/metrics",
		listener.Addr())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Prometheus exporter stopped: %v", err)
		}
	}()

	return nil
}

// Stop shuts the exporter down.
func (m *Metrics) Stop() error {
	m.mu.Lock()
	server := m.server
	m.server = nil
	m.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(
		context.Background(), shutdownTimeout,
	)
	defer cancel()

	err := server.Shutdown(ctx)
	m.wg.Wait()

	return err
}
