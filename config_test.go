package sporkd

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/catocoin/sporkd/sporkcfg"
	"github.com/stretchr/testify/require"
)

// testConfig returns a default config rooted in a temporary directory.
func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.SporkdDir = t.TempDir()
	cfg.DebugLevel = "critical"

	return cfg
}

// TestValidateConfigNetworks checks network selection picks the parameters,
// directories and listen port of the network.
func TestValidateConfigNetworks(t *testing.T) {
	cfg := testConfig(t)
	cfg.RegTest = true

	cleanCfg, err := ValidateConfig(cfg, "")
	require.NoError(t, err)

	require.Equal(t, regTestParams.Name, cleanCfg.network.Name)
	require.Equal(
		t, filepath.Join(cfg.SporkdDir, defaultDataDirname, "regtest"),
		cleanCfg.DataDir,
	)
	require.Len(t, cleanCfg.Listeners, 1)
	require.Contains(t, cleanCfg.Listeners[0].String(), ":31320")

	expected, err := regTestParams.trustKey()
	require.NoError(t, err)
	require.True(t, expected.IsEqual(cleanCfg.trustKey))

	cfg = testConfig(t)
	cleanCfg, err = ValidateConfig(cfg, "")
	require.NoError(t, err)
	require.Equal(t, mainNetParams.Name, cleanCfg.network.Name)

	cfg = testConfig(t)
	cfg.TestNet = true
	cfg.RegTest = true
	_, err = ValidateConfig(cfg, "")
	require.ErrorContains(t, err, "can't be used together")
}

// TestValidateConfigListeners checks explicit and disabled listeners.
func TestValidateConfigListeners(t *testing.T) {
	cfg := testConfig(t)
	cfg.RawListeners = []string{"127.0.0.1"}
	cfg.ConnectPeers = []string{"127.0.0.1:9999"}

	cleanCfg, err := ValidateConfig(cfg, "")
	require.NoError(t, err)
	require.Len(t, cleanCfg.Listeners, 1)
	require.Equal(t, "127.0.0.1:31300", cleanCfg.Listeners[0].String())

	cfg = testConfig(t)
	cfg.DisableListen = true
	cleanCfg, err = ValidateConfig(cfg, "")
	require.NoError(t, err)
	require.Empty(t, cleanCfg.Listeners)

	cfg = testConfig(t)
	cfg.ConnectPeers = []string{"127.0.0.1:notaport"}
	_, err = ValidateConfig(cfg, "")
	require.Error(t, err)
}

// TestValidateConfigSporkKeys checks the spork key override and that the
// signing key must belong to the selected network.
func TestValidateConfigSporkKeys(t *testing.T) {
	priv := regtestKey()
	mainWIF, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, true)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.RegTest = true
	cfg.Spork.SigningKey = mainWIF.String()
	_, err = ValidateConfig(cfg, "")
	require.ErrorContains(t, err, "signing key is not for regtest")

	cfg = testConfig(t)
	cfg.Spork.SigningKey = mainWIF.String()
	cfg.Spork.PubKey = regTestParams.SporkKey
	cleanCfg, err := ValidateConfig(cfg, "")
	require.NoError(t, err)
	require.True(t, priv.PubKey().IsEqual(cleanCfg.trustKey))

	cfg = testConfig(t)
	cfg.Spork.PubKey = "02abcd"
	_, err = ValidateConfig(cfg, "")
	require.Error(t, err)

	regWIF, err := btcutil.NewWIF(
		priv, &chaincfg.RegressionNetParams, true,
	)
	require.NoError(t, err)

	cfg = testConfig(t)
	cfg.RegTest = true
	cfg.Spork.Updates = []string{"SPORK_5_MAX_VALUE=10"}
	_, err = ValidateConfig(cfg, "")
	require.ErrorContains(t, err, "requires spork.signingkey")

	cfg = testConfig(t)
	cfg.RegTest = true
	cfg.Spork.Updates = []string{"SPORK_5_MAX_VALUE=10"}
	cfg.Spork.SigningKey = regWIF.String()
	cleanCfg, err = ValidateConfig(cfg, "")
	require.NoError(t, err)
	require.Equal(
		t, []sporkcfg.SporkUpdate{{ID: 10004, Value: 10}},
		cleanCfg.sporkUpdates,
	)
}

// TestValidateConfigLimits checks out of range settings are rejected.
func TestValidateConfigLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxPeers = -1
	_, err := ValidateConfig(cfg, "")
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.PingInterval = 0
	_, err = ValidateConfig(cfg, "")
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.GetSporksPerMin = 0
	_, err = ValidateConfig(cfg, "")
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.DebugLevel = "SPRK=nope"
	_, err = ValidateConfig(cfg, "")
	require.Error(t, err)
}

// TestParamsForNetwork checks network lookup by name.
func TestParamsForNetwork(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"mainnet", "testnet", "testnet3",
		"regtest"} {

		params, err := ParamsForNetwork(name)
		require.NoError(t, err, name)

		_, err = params.trustKey()
		require.NoError(t, err, name)
	}

	_, err := ParamsForNetwork("simnet")
	require.Error(t, err)
}
