package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/catocoin/sporkd"
	"github.com/catocoin/sporkd/build"
	"github.com/urfave/cli"
)

const defaultTimeout = 5 * time.Second

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[sporkcli] %v\n", err)
	os.Exit(1)
}

// networkParams returns the parameters of the network selected with the
// global --network flag.
func networkParams(ctx *cli.Context) (sporkd.NetworkParams, error) {
	return sporkd.ParamsForNetwork(ctx.GlobalString("network"))
}

// nodeAddress returns the --node address, adding the network's default
// port when none is given.
func nodeAddress(ctx *cli.Context, params sporkd.NetworkParams) (string,
	error) {

	addr := ctx.String("node")
	if addr == "" {
		return "", fmt.Errorf("--node must be set")
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, params.DefaultPort)
	}

	return addr, nil
}

// checkNotBothSet accepts two flag names, a and b, and checks that only flag a
// or flag b can be set, but not both. It returns the name of the flag or an
// error.
func checkNotBothSet(ctx *cli.Context, a, b string) (string, error) {
	if ctx.IsSet(a) && ctx.IsSet(b) {
		return "", fmt.Errorf(
			"either %s or %s should be set, but not both", a, b,
		)
	}

	if ctx.IsSet(a) {
		return a, nil
	}

	return b, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "sporkcli"
	app.Version = build.Version() + " commit=" + build.Commit
	app.Usage = "inspect and author sporks of a spork network"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name: "network, n",
			Usage: "The network the node is running on, e.g. " +
				"mainnet, testnet or regtest.",
			Value: "mainnet",
		},
		cli.DurationFlag{
			Name: "timeout",
			Usage: "How long to wait for the node to connect or " +
				"answer.",
			Value: defaultTimeout,
		},
	}
	app.Commands = []cli.Command{
		catalogCommand,
		getSporksCommand,
		updateCommand,
		genKeyCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
