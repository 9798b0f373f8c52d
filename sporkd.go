// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2020 The Lightning Network Developers

package sporkd

import (
	"fmt"
	"net"

	"github.com/catocoin/sporkd/build"
	"github.com/catocoin/sporkd/monitoring"
	"github.com/catocoin/sporkd/signal"
	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkdb"
)

// Main is the true entry point for sporkd. It opens the spork database,
// starts the metrics exporter and the peer server, then blocks until a
// shutdown is requested through the interceptor.
func Main(cfg *Config, interceptor signal.Interceptor) error {
	defer func() {
		sdmnLog.Info("Shutdown complete")
		if cfg.LogRotator != nil {
			if err := cfg.LogRotator.Close(); err != nil {
				sdmnLog.Errorf("Could not close log rotator: %v",
					err)
			}
		}
	}()

	sdmnLog.Infof("Version: %s commit=%s, network=%s", build.Version(),
		build.Commit, cfg.network.Name)

	// Open the database holding every accepted spork.
	backend, err := cfg.DB.GetBackend(cfg.DataDir)
	if err != nil {
		err := fmt.Errorf("unable to open spork database: %w", err)
		sdmnLog.Error(err)
		return err
	}
	defer backend.Close()

	store, err := sporkdb.New(backend)
	if err != nil {
		err := fmt.Errorf("unable to initialize spork store: %w", err)
		sdmnLog.Error(err)
		return err
	}

	var numActive func() int
	metrics := monitoring.New(func() int {
		return numActive()
	})
	listeners := make([]net.Listener, 0, len(cfg.Listeners))
	for _, addr := range cfg.Listeners {
		l, err := net.Listen(addr.Network(), addr.String())
		if err != nil {
			for _, opened := range listeners {
				opened.Close()
			}

			err := fmt.Errorf("unable to listen on %v: %w", addr,
				err)
			sdmnLog.Error(err)
			return err
		}

		sdmnLog.Infof("Listening for peers on %v", l.Addr())
		listeners = append(listeners, l)
	}

	connectPeers := make([]net.Addr, 0, len(cfg.ConnectPeers))
	for _, raw := range cfg.ConnectPeers {
		addr, err := parseAddr(raw, cfg.network.DefaultPort)
		if err != nil {
			return fmt.Errorf("invalid peer address %v: %w", raw,
				err)
		}
		connectPeers = append(connectPeers, addr)
	}

	server, err := newServer(&serverConfig{
		Listeners:       listeners,
		ConnectPeers:    connectPeers,
		TrustKey:        cfg.trustKey,
		MessageMagic:    cfg.network.MessageMagic,
		HistorySize:     cfg.Spork.HistorySize,
		SigningKey:      cfg.Spork.SigningKey,
		Updates:         cfg.sporkUpdates,
		Store:           store,
		Metrics:         metrics,
		MaxPeers:        cfg.MaxPeers,
		PingInterval:    cfg.PingInterval,
		WriteTimeout:    cfg.WriteTimeout,
		RetryDuration:   cfg.RetryDuration,
		GetSporksPerMin: cfg.GetSporksPerMin,
		BanThreshold:    cfg.Ban.Threshold,
		BanDuration:     cfg.Ban.Duration,
	})
	if err != nil {
		for _, l := range listeners {
			l.Close()
		}

		err := fmt.Errorf("unable to create server: %w", err)
		sdmnLog.Error(err)
		return err
	}
	numActive = server.Table().NumActive

	// Entries the catalog no longer knows are kept on disk but never
	// loaded.
	stored, err := store.Sporks()
	if err != nil {
		sdmnLog.Warnf("Unable to scan spork store: %v", err)
	}
	for id := range stored {
		if !spork.IsKnown(id) {
			sdmnLog.Warnf("Stored spork %d is not in the catalog, "+
				"ignoring it", id)
		}
	}

	// The exporter only reads numActive once it is started.
	if err := metrics.Start(cfg.Prometheus); err != nil {
		err := fmt.Errorf("unable to start metrics exporter: %w", err)
		sdmnLog.Error(err)
		for _, l := range listeners {
			l.Close()
		}

		return err
	}
	defer func() {
		if err := metrics.Stop(); err != nil {
			sdmnLog.Errorf("Unable to stop metrics exporter: %v",
				err)
		}
	}()

	if err := server.Start(); err != nil {
		err := fmt.Errorf("unable to start server: %w", err)
		sdmnLog.Error(err)
		return err
	}
	defer func() {
		if err := server.Stop(); err != nil {
			sdmnLog.Errorf("Unable to stop server: %v", err)
		}
	}()

	sdmnLog.Infof("Spork node started with %d active sporks, "+
		"signing=%v", server.Table().NumActive(),
		server.manager.HasSigningKey())

	<-interceptor.ShutdownChannel()

	return nil
}
