package sporkd

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkcfg"
)

// NetworkParams couples the spork protocol parameters of a network with the
// default peer port of a daemon running on it.
type NetworkParams struct {
	// Name is the name used for the network's data directory.
	Name string

	// DefaultPort is the peer port used when an address has none.
	DefaultPort string

	// SporkKey is the hex encoded public key allowed to sign sporks.
	SporkKey string

	// MessageMagic prefixes every signed message digest.
	MessageMagic string

	// WIFParams are the address parameters used to decode signing keys.
	WIFParams *chaincfg.Params
}

// mainNetParams contains the parameters of the main network.
var mainNetParams = NetworkParams{
	Name:         "mainnet",
	DefaultPort:  "31300",
	SporkKey:     "02d0373ad80b108f0697b961bbccf85a4ed55bdb6cba961cf90fcac264ea289e77",
	MessageMagic: spork.DefaultMessageMagic,
	WIFParams:    &chaincfg.MainNetParams,
}

// testNetParams contains the parameters of the public test network. It
// shares the main network's spork key.
var testNetParams = NetworkParams{
	Name:         "testnet",
	DefaultPort:  "31310",
	SporkKey:     mainNetParams.SporkKey,
	MessageMagic: spork.DefaultMessageMagic,
	WIFParams:    &chaincfg.TestNet3Params,
}

// regTestParams contains the parameters of local regression test networks.
// The spork key is the public key of the private key 1, so anyone can sign
// regtest sporks.
var regTestParams = NetworkParams{
	Name:         "regtest",
	DefaultPort:  "31320",
	SporkKey:     "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798",
	MessageMagic: spork.DefaultMessageMagic,
	WIFParams:    &chaincfg.RegressionNetParams,
}

// trustKey parses the network's spork key.
func (p *NetworkParams) trustKey() (*btcec.PublicKey, error) {
	return spork.ParseTrustKey(p.SporkKey)
}

// ParamsForNetwork returns the parameters of the named network.
func ParamsForNetwork(name string) (NetworkParams, error) {
	switch sporkcfg.NormalizeNetwork(name) {
	case mainNetParams.Name:
		return mainNetParams, nil

	case testNetParams.Name:
		return testNetParams, nil

	case regTestParams.Name:
		return regTestParams, nil

	default:
		return NetworkParams{}, fmt.Errorf("unknown network: %v", name)
	}
}
