package sporkd

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/catocoin/sporkd/build"
	"github.com/catocoin/sporkd/monitoring"
	"github.com/catocoin/sporkd/signal"
	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkdb"
)

// Loggers of the daemon package itself. They are replaced with real loggers
// by SetupLoggers once the log rotator has been initialized.
var (
	sdmnLog = build.NewSubLogger("SDMN", nil)
	srvrLog = build.NewSubLogger("SRVR", nil)
	peerLog = build.NewSubLogger("PEER", nil)
)

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.SubLoggerManager) {
	sdmnLog = AddSubLogger(root, "SDMN")
	srvrLog = AddSubLogger(root, "SRVR")
	peerLog = AddSubLogger(root, "PEER")

	AddSubLogger(root, spork.Subsystem, spork.UseLogger)
	AddSubLogger(root, sporkdb.Subsystem, sporkdb.UseLogger)
	AddSubLogger(root, monitoring.Subsystem, monitoring.UseLogger)
	AddSubLogger(root, signal.Subsystem, signal.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) btclog.Logger {

	logger := root.GenSubLogger(subsystem)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}

	return logger
}

// logClosure is used to provide a closure over expensive logging operations so
// don't have to be performed when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with the
// logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
