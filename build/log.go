package build

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/btcsuite/btclog/v2"
)

// NewSubLogger constructs a new subsystem log from the passed generator. If no
// generator is given, logging for the subsystem is disabled until the caller
// replaces it through the package's UseLogger function.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	if genSubLogger == nil {
		return btclog.Disabled
	}

	return genSubLogger(subsystem)
}

// SubLoggers is a type that holds a map of subsystem loggers keyed by their
// subsystem name.
type SubLoggers map[string]btclog.Logger

// SubLoggerManager owns the writer that all subsystem loggers of the daemon
// write to, and keeps track of the loggers so their levels can be changed at
// runtime.
type SubLoggerManager struct {
	w          io.Writer
	subLoggers SubLoggers
}

// NewSubLoggerManager creates a manager whose loggers write to stdout and, if
// non-nil, to the given rotating log file writer.
func NewSubLoggerManager(rotator *RotatingLogWriter) *SubLoggerManager {
	var w io.Writer = os.Stdout
	if rotator != nil {
		w = io.MultiWriter(os.Stdout, rotator)
	}

	return &SubLoggerManager{
		w:          w,
		subLoggers: make(SubLoggers),
	}
}

// GenSubLogger returns a new logger tagged with the given subsystem and
// registers it with the manager.
func (m *SubLoggerManager) GenSubLogger(subsystem string) btclog.Logger {
	// Every subsystem gets its own handler so levels are independent.
	root := btclog.NewSLogger(btclog.NewDefaultHandler(m.w))
	logger := root.SubSystem(subsystem)
	m.subLoggers[subsystem] = logger

	return logger
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func (m *SubLoggerManager) SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(m.subLoggers))
	for subsysID := range m.subLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel assigns an individual subsystem logger a new log level.
func (m *SubLoggerManager) SetLogLevel(subsystemID, logLevel string) {
	logger, ok := m.subLoggers[subsystemID]
	if !ok {
		return
	}

	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels assigns all subsystem loggers the same new log level.
func (m *SubLoggerManager) SetLogLevels(logLevel string) {
	for subsystemID := range m.subLoggers {
		m.SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels parses the debug level string and applies it. The
// string is either a single level applied to every subsystem, or a comma
// separated list of SUBSYS=level pairs.
func ParseAndSetDebugLevels(level string, m *SubLoggerManager) error {
	if !strings.Contains(level, ",") && !strings.Contains(level, "=") {
		if !validLogLevel(level) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", level)
		}

		m.SetLogLevels(level)

		return nil
	}

	for _, logLevelPair := range strings.Split(level, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%v]",
				logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		if len(fields) != 2 {
			return fmt.Errorf("the specified debug level has an "+
				"invalid format [%v] -- use format "+
				"subsystem1=level1,subsystem2=level2",
				logLevelPair)
		}
		subsysID, logLevel := fields[0], fields[1]

		if _, ok := m.subLoggers[subsysID]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems are %v",
				subsysID, m.SupportedSubsystems())
		}

		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", logLevel)
		}

		m.SetLogLevel(subsysID, logLevel)
	}

	return nil
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}

	return false
}
