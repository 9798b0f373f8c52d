package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/catocoin/sporkd"
	"github.com/catocoin/sporkd/spork"
	"github.com/catocoin/sporkd/sporkwire"
	"github.com/urfave/cli"
)

func printJSON(w io.Writer, resp interface{}) {
	b, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fatal(err)
	}

	fmt.Fprintf(w, "%s\n", b)
}

// catalogEntry is the printed form of a catalog entry.
type catalogEntry struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	Default   int64  `json:"default"`
	Threshold string `json:"threshold"`
}

var catalogCommand = cli.Command{
	Name:     "catalog",
	Category: "Sporks",
	Usage:    "List every known spork with its default value.",
	Action:   catalog,
}

func catalog(ctx *cli.Context) error {
	printJSON(os.Stdout, catalogEntries())

	return nil
}

func catalogEntries() []catalogEntry {
	entries := spork.Entries()
	resp := make([]catalogEntry, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, catalogEntry{
			ID:        int32(e.ID),
			Name:      e.Name,
			Default:   e.Default,
			Threshold: e.Threshold.String(),
		})
	}

	return resp
}

// sporkEntry is the printed form of a spork message.
type sporkEntry struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	Value     int64  `json:"value"`
	SignedAt  string `json:"signed_at"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	Valid     bool   `json:"valid"`
}

func newSporkEntry(msg *sporkwire.Spork, verify func(
	*sporkwire.Spork) error) sporkEntry {

	return sporkEntry{
		ID:       msg.ID,
		Name:     spork.NameOf(spork.ID(msg.ID)),
		Value:    msg.Value,
		SignedAt: time.Unix(msg.SignedAt, 0).UTC().Format(time.RFC3339),
		Hash:     msg.Hash().String(),
		Signature: hex.EncodeToString(
			msg.Signature,
		),
		Valid: verify(msg) == nil,
	}
}

var nodeFlag = cli.StringFlag{
	Name:  "node",
	Usage: "The host:port of the spork node to talk to.",
}

var pubKeyFlag = cli.StringFlag{
	Name: "pubkey",
	Usage: "Override the network's spork public key (hex), for " +
		"private test networks.",
}

var getSporksCommand = cli.Command{
	Name:     "getsporks",
	Category: "Sporks",
	Usage:    "Fetch the active sporks of a node.",
	Description: `
	Connect to a node as a peer, request its active sporks and print
	them together with whether their signature checks out against the
	network's spork key.`,
	Flags: []cli.Flag{
		nodeFlag,
		pubKeyFlag,
	},
	Action: getSporks,
}

// trustManager creates a manager verifying against the selected network's
// spork key or the --pubkey override.
func trustManager(ctx *cli.Context, params sporkd.NetworkParams,
	table *spork.Table) (*spork.Manager, error) {

	keyHex := params.SporkKey
	if ctx.IsSet("pubkey") {
		keyHex = ctx.String("pubkey")
	}

	trustKey, err := spork.ParseTrustKey(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid spork key: %w", err)
	}

	return spork.NewManager(&spork.ManagerConfig{
		TrustKey:     trustKey,
		MessageMagic: params.MessageMagic,
		Table:        table,
	}), nil
}

func getSporks(ctx *cli.Context) error {
	params, err := networkParams(ctx)
	if err != nil {
		return err
	}

	addr, err := nodeAddress(ctx, params)
	if err != nil {
		return err
	}

	manager, err := trustManager(ctx, params, spork.NewTable(0))
	if err != nil {
		return err
	}

	client, err := dialNode(addr, ctx.GlobalDuration("timeout"))
	if err != nil {
		return err
	}
	defer client.Close()

	sporks, err := client.fetchSporks()
	if err != nil {
		return err
	}

	resp := make([]sporkEntry, 0, len(sporks))
	for i := range sporks {
		resp = append(resp, newSporkEntry(&sporks[i], manager.Verify))
	}

	printJSON(os.Stdout, resp)

	return nil
}

var updateCommand = cli.Command{
	Name:      "update",
	Category:  "Sporks",
	Usage:     "Sign a new spork value and push it to a node.",
	ArgsUsage: "",
	Description: `
	Sign a new value for a spork with the spork private key and send it
	to a node, which validates it and relays it to the network. The key
	never leaves this process.

	The spork is selected either by numeric --id or by --name. Time
	based sporks are active once the value, a unix timestamp, lies in
	the past. Use 4070908800 to switch a spork off.`,
	Flags: []cli.Flag{
		nodeFlag,
		pubKeyFlag,
		cli.StringFlag{
			Name:  "key",
			Usage: "The WIF encoded spork private key.",
		},
		cli.Int64Flag{
			Name:  "id",
			Usage: "The numeric id of the spork.",
		},
		cli.StringFlag{
			Name:  "name",
			Usage: "The name of the spork, e.g. SPORK_2_SWIFTTX.",
		},
		cli.Int64Flag{
			Name:  "value",
			Usage: "The new value of the spork.",
		},
	},
	Action: update,
}

// parseSporkID resolves the spork selected through --id or --name.
func parseSporkID(ctx *cli.Context) (spork.ID, error) {
	flag, err := checkNotBothSet(ctx, "id", "name")
	if err != nil {
		return spork.UnknownID, err
	}

	var id spork.ID
	switch {
	case flag == "id" && ctx.IsSet("id"):
		id = spork.ID(ctx.Int64("id"))

	case flag == "name" && ctx.IsSet("name"):
		id = spork.IDOf(ctx.String("name"))

	default:
		return spork.UnknownID, fmt.Errorf("either --id or --name " +
			"must be set")
	}

	if !spork.IsKnown(id) {
		return spork.UnknownID, fmt.Errorf("%w: %v/%v",
			spork.ErrUnknownSpork, ctx.Int64("id"),
			ctx.String("name"))
	}

	return id, nil
}

func update(ctx *cli.Context) error {
	params, err := networkParams(ctx)
	if err != nil {
		return err
	}

	addr, err := nodeAddress(ctx, params)
	if err != nil {
		return err
	}

	id, err := parseSporkID(ctx)
	if err != nil {
		return err
	}

	if !ctx.IsSet("value") {
		return fmt.Errorf("--value must be set")
	}
	value := ctx.Int64("value")

	wif, err := btcutil.DecodeWIF(ctx.String("key"))
	if err != nil {
		return fmt.Errorf("invalid --key: %w", err)
	}
	if !wif.IsForNet(params.WIFParams) {
		return fmt.Errorf("--key is not a %v key", params.Name)
	}

	table := spork.NewTable(0)
	manager, err := trustManager(ctx, params, table)
	if err != nil {
		return err
	}
	if err := manager.SetSigningKey(wif.PrivKey); err != nil {
		return err
	}

	client, err := dialNode(addr, ctx.GlobalDuration("timeout"))
	if err != nil {
		return err
	}
	defer client.Close()

	msg, err := pushUpdate(client, manager, table, id, value)
	if err != nil {
		return err
	}

	printJSON(os.Stdout, newSporkEntry(&msg, manager.Verify))

	return nil
}

// pushUpdate signs value for id, sends it to the node and checks that the
// node took it. The node's current sporks seed table first so the new
// message is never older than what the node holds.
func pushUpdate(client *nodeClient, manager *spork.Manager,
	table *spork.Table, id spork.ID, value int64) (sporkwire.Spork, error) {

	current, err := client.fetchSporks()
	if err != nil {
		return sporkwire.Spork{}, err
	}
	for i := range current {
		if manager.Verify(&current[i]) != nil {
			continue
		}
		_ = table.Commit(&current[i])
	}

	msg, err := manager.UpdateSpork(id, value)
	if err != nil {
		return sporkwire.Spork{}, err
	}

	if err := client.send(&msg); err != nil {
		return sporkwire.Spork{}, err
	}

	after, err := client.fetchSporks()
	if err != nil {
		return sporkwire.Spork{}, err
	}
	for i := range after {
		if after[i].Hash() == msg.Hash() {
			return msg, nil
		}
	}

	return sporkwire.Spork{}, fmt.Errorf("node did not accept %v", &msg)
}

// generatedKey is the printed form of a fresh spork key pair.
type generatedKey struct {
	WIF    string `json:"wif"`
	PubKey string `json:"pubkey"`
}

var genKeyCommand = cli.Command{
	Name:     "genkey",
	Category: "Keys",
	Usage:    "Generate a new spork key pair for a test network.",
	Action:   genKey,
}

func genKey(ctx *cli.Context) error {
	params, err := networkParams(ctx)
	if err != nil {
		return err
	}

	key, err := newKeyPair(params)
	if err != nil {
		return err
	}

	printJSON(os.Stdout, key)

	return nil
}

func newKeyPair(params sporkd.NetworkParams) (*generatedKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	wif, err := btcutil.NewWIF(priv, params.WIFParams, true)
	if err != nil {
		return nil, err
	}

	return &generatedKey{
		WIF:    wif.String(),
		PubKey: hex.EncodeToString(priv.PubKey().SerializeCompressed()),
	}, nil
}

