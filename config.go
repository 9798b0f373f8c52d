// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Copyright (C) 2015-2020 The Lightning Network Developers

package sporkd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/catocoin/sporkd/build"
	"github.com/catocoin/sporkd/sporkcfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDataDirname     = "data"
	defaultLogLevel        = "info"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "sporkd.log"
	defaultMaxPeers        = 125
	defaultPingInterval    = time.Minute
	defaultWriteTimeout    = 30 * time.Second
	defaultRetryDuration   = 5 * time.Second
	defaultGetSporksPerMin = 6
)

var (
	// DefaultSporkdDir is the default directory where sporkd tries to find
	// its configuration file and store its data. This is a directory in
	// the user's application data, for example:
	//   C:\Users\<username>\AppData\Local\Sporkd on Windows
	//   ~/.sporkd on Linux
	//   ~/Library/Application Support/Sporkd on MacOS
	DefaultSporkdDir = btcutil.AppDataDir("sporkd", false)

	// DefaultConfigFile is the default full path of sporkd's configuration
	// file.
	DefaultConfigFile = filepath.Join(
		DefaultSporkdDir, sporkcfg.DefaultConfigFilename,
	)

	defaultDataDir = filepath.Join(DefaultSporkdDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultSporkdDir, defaultLogDirname)
)

// Config defines the configuration options for sporkd.
//
// See LoadConfig for further details regarding the configuration
// loading+parsing process.
//
//nolint:lll
type Config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	SporkdDir  string `long:"sporkddir" description:"The base directory that contains sporkd's data, logs, configuration file, etc."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"The directory to store sporkd's data within"`
	LogDir     string `long:"logdir" description:"Directory to log output."`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	RawListeners  []string `long:"listen" description:"Add an interface/port/socket to listen for peer connections"`
	DisableListen bool     `long:"nolisten" description:"Disable listening for incoming peer connections"`
	ConnectPeers  []string `long:"connect" description:"Maintain a persistent connection to the given peer"`
	MaxPeers      int      `long:"maxpeers" description:"The maximum number of inbound peers to accept"`

	PingInterval    time.Duration `long:"pinginterval" description:"How often to ping connected peers"`
	WriteTimeout    time.Duration `long:"writetimeout" description:"How long a message write to a peer may take before the peer is disconnected"`
	RetryDuration   time.Duration `long:"retryduration" description:"How long to wait before retrying a failed persistent connection"`
	GetSporksPerMin float64       `long:"getsporkspermin" description:"How many getsporks requests per minute a peer may make"`

	MainNet bool `long:"mainnet" description:"Use the main network"`
	TestNet bool `long:"testnet" description:"Use the test network"`
	RegTest bool `long:"regtest" description:"Use the regression test network"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	DB *sporkcfg.DB `group:"db" namespace:"db"`

	Spork *sporkcfg.Spork `group:"spork" namespace:"spork"`

	Prometheus sporkcfg.Prometheus `group:"prometheus" namespace:"prometheus"`

	Ban *sporkcfg.Ban `group:"ban" namespace:"ban"`

	// Listeners are the parsed listen addresses.
	Listeners []net.Addr

	// network holds the parameters of the selected network.
	network NetworkParams

	// trustKey is the spork key in force, either the network's or the
	// configured override.
	trustKey *btcec.PublicKey

	// sporkUpdates are the updates authored at startup.
	sporkUpdates []sporkcfg.SporkUpdate

	// LogRotator is the file writer of the daemon's log.
	LogRotator *build.RotatingLogWriter

	// SubLogMgr is the manager of every subsystem logger.
	SubLogMgr *build.SubLoggerManager
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		SporkdDir:       DefaultSporkdDir,
		ConfigFile:      DefaultConfigFile,
		DataDir:         defaultDataDir,
		LogDir:          defaultLogDir,
		DebugLevel:      defaultLogLevel,
		MaxPeers:        defaultMaxPeers,
		PingInterval:    defaultPingInterval,
		WriteTimeout:    defaultWriteTimeout,
		RetryDuration:   defaultRetryDuration,
		GetSporksPerMin: defaultGetSporksPerMin,
		LogConfig:       build.DefaultLogConfig(),
		DB:              sporkcfg.DefaultDB(),
		Spork:           sporkcfg.DefaultSpork(),
		Prometheus:      sporkcfg.DefaultPrometheus(),
		Ban:             sporkcfg.DefaultBan(),
		LogRotator:      build.NewRotatingLogWriter(),
	}
}

// LoadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	// Pre-parse the command line options to pick up an alternative config
	// file.
	preCfg := DefaultConfig()
	if _, err := flags.Parse(&preCfg); err != nil {
		return nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", build.Version(),
			"commit="+build.Commit)
		os.Exit(0)
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their sporkddir, then we should assume they intend to use
	// the config file within it.
	configFileDir := sporkcfg.CleanAndExpandPath(preCfg.SporkdDir)
	configFilePath := sporkcfg.CleanAndExpandPath(preCfg.ConfigFile)
	if configFileDir != DefaultSporkdDir {
		if configFilePath == DefaultConfigFile {
			configFilePath = filepath.Join(
				configFileDir, sporkcfg.DefaultConfigFilename,
			)
		}
	}

	// Next, load any additional configuration options from the file.
	var configFileError error
	cfg := preCfg
	if err := flags.IniParse(configFilePath, &cfg); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return nil, err
		}

		configFileError = err
	}

	// Finally, parse the remaining command line options again to ensure
	// they take precedence.
	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, err := ValidateConfig(cfg, usageMessage)
	if err != nil {
		return nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		sdmnLog.Warnf("%v", configFileError)
	}

	return cleanCfg, nil
}

// ValidateConfig check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set. All file system paths are
// normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config, usageMessage string) (*Config, error) {
	// If the provided sporkd directory is not the default, we'll modify
	// the path to all of the files and directories that will live within
	// it.
	sporkdDir := sporkcfg.CleanAndExpandPath(cfg.SporkdDir)
	if sporkdDir != DefaultSporkdDir {
		cfg.DataDir = filepath.Join(sporkdDir, defaultDataDirname)
		cfg.LogDir = filepath.Join(sporkdDir, defaultLogDirname)
	}

	funcName := "ValidateConfig"
	mkErr := func(format string, args ...interface{}) error {
		return fmt.Errorf(funcName+": "+format, args...)
	}

	// Exactly one network may be selected, main network by default.
	numNets := 0
	cfg.network = mainNetParams
	if cfg.MainNet {
		numNets++
	}
	if cfg.TestNet {
		numNets++
		cfg.network = testNetParams
	}
	if cfg.RegTest {
		numNets++
		cfg.network = regTestParams
	}
	if numNets > 1 {
		str := "The mainnet, testnet and regtest params can't be " +
			"used together -- choose one of the three"
		return nil, mkErr("%s", str)
	}

	// As soon as we're done parsing configuration options, ensure all
	// paths to directories and files are cleaned and expanded before
	// attempting to use them later on.
	cfg.DataDir = sporkcfg.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = sporkcfg.CleanAndExpandPath(cfg.LogDir)

	// Data and logs of each network live in their own directory.
	networkName := sporkcfg.NormalizeNetwork(cfg.network.Name)
	cfg.DataDir = filepath.Join(cfg.DataDir, networkName)
	cfg.LogDir = filepath.Join(cfg.LogDir, networkName)

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, mkErr("failed to create data directory: %v", err)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		subLogMgr := build.NewSubLoggerManager(nil)
		SetupLoggers(subLogMgr)
		fmt.Println("Supported subsystems",
			subLogMgr.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize logging at the default logging level.
	if cfg.LogRotator == nil {
		cfg.LogRotator = build.NewRotatingLogWriter()
	}
	err := cfg.LogRotator.InitLogRotator(
		cfg.LogConfig, filepath.Join(cfg.LogDir, defaultLogFilename),
	)
	if err != nil {
		return nil, mkErr("log rotation setup failed: %v", err)
	}
	cfg.SubLogMgr = build.NewSubLoggerManager(cfg.LogRotator)
	SetupLoggers(cfg.SubLogMgr)

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, cfg.SubLogMgr)
	if err != nil {
		str := "error parsing debug level: %v"
		return nil, &flags.Error{
			Type:    flags.ErrInvalidChoice,
			Message: fmt.Sprintf(str, err) + "\n" + usageMessage,
		}
	}

	if err := sporkcfg.Validate(
		cfg.DB, &cfg.Prometheus, cfg.Spork, cfg.Ban,
	); err != nil {
		return nil, mkErr("%v", err)
	}

	if cfg.MaxPeers < 0 {
		return nil, mkErr("maxpeers must not be negative")
	}
	if cfg.PingInterval <= 0 || cfg.WriteTimeout <= 0 ||
		cfg.RetryDuration <= 0 {

		return nil, mkErr("pinginterval, writetimeout and " +
			"retryduration must be positive")
	}
	if cfg.GetSporksPerMin <= 0 {
		return nil, mkErr("getsporkspermin must be positive")
	}

	// The spork key may be overridden for private networks.
	sporkKey := cfg.network.SporkKey
	if cfg.Spork.PubKey != "" {
		sporkKey = cfg.Spork.PubKey
	}
	cfg.network.SporkKey = sporkKey
	cfg.trustKey, err = cfg.network.trustKey()
	if err != nil {
		return nil, mkErr("invalid spork key: %v", err)
	}

	// A signing key must belong to the selected network.
	if cfg.Spork.SigningKey != "" {
		wif, err := btcutil.DecodeWIF(cfg.Spork.SigningKey)
		if err != nil {
			return nil, mkErr("invalid signing key: %v", err)
		}
		if !wif.IsForNet(cfg.network.WIFParams) {
			return nil, mkErr("signing key is not for %v",
				cfg.network.Name)
		}
	}

	cfg.sporkUpdates, err = cfg.Spork.ParseUpdates()
	if err != nil {
		return nil, mkErr("invalid spork update: %v", err)
	}

	// Listen on the default port of the network unless told otherwise.
	if !cfg.DisableListen && len(cfg.RawListeners) == 0 {
		cfg.RawListeners = []string{
			net.JoinHostPort("", cfg.network.DefaultPort),
		}
	}
	if cfg.DisableListen {
		cfg.RawListeners = nil
	}

	cfg.Listeners = make([]net.Addr, 0, len(cfg.RawListeners))
	for _, raw := range cfg.RawListeners {
		addr, err := parseAddr(raw, cfg.network.DefaultPort)
		if err != nil {
			return nil, mkErr("invalid listen address %v: %v",
				raw, err)
		}
		cfg.Listeners = append(cfg.Listeners, addr)
	}

	for _, raw := range cfg.ConnectPeers {
		if _, err := parseAddr(raw, cfg.network.DefaultPort); err != nil {
			return nil, mkErr("invalid peer address %v: %v", raw,
				err)
		}
	}

	return &cfg, nil
}

// parseAddr resolves a host[:port] string into a TCP address, filling in
// defaultPort when no port is given.
func parseAddr(address, defaultPort string) (net.Addr, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, defaultPort)
	}

	return net.ResolveTCPAddr("tcp", address)
}
