// Command solanapay encodes, inspects and serves Solana Pay payment requests.
//
//	solanapay encode --recipient <key> --amount 1.5 --reference <key>
//	solanapay decode <url>
//	solanapay build --payer <key> <url>
//	solanapay qr --out pay.png <url>
//	solanapay confirm <url>
//	solanapay settle <base64-tx>
//	solanapay serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	solanapay "github.com/TrippyLeaf/solana-pay"
	"github.com/TrippyLeaf/solana-pay/config"
	"github.com/TrippyLeaf/solana-pay/logger"
	"github.com/TrippyLeaf/solana-pay/types"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"encode", "build a payment request URL", runEncode},
	{"decode", "parse a payment request URL", runDecode},
	{"build", "build the unsigned transaction paying a URL", runBuild},
	{"qr", "render a URL as a PNG QR code", runQR},
	{"confirm", "find and validate the payment for a URL", runConfirm},
	{"settle", "broadcast a signed base64 transaction", runSettle},
	{"serve", "run the payment HTTP server", runServe},
}

// env carries what every command derives from the shared flags.
type env struct {
	flags  *pflag.FlagSet
	config string
	log    *logger.ZapLogger
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == os.Args[1] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, newEnv(cmd.name), os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.name, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: solanapay <command> [flags] [args]")
	fmt.Fprintln(os.Stderr)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.summary)
	}
}

func newEnv(name string) *env {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	e := &env{flags: fs}
	fs.StringVarP(&e.config, "config", "c", "", "config file (yaml, json or toml)")
	fs.String("network", "", "cluster: solana-mainnet, solana-devnet, solana-testnet or solana-localnet")
	fs.String("rpc-url", "", "RPC endpoint, defaults to the cluster's public endpoint")
	fs.String("commitment", "", "processed, confirmed or finalized")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.Duration("timeout", 0, "per-request ledger timeout")
	return e
}

// parse parses args and returns the positional arguments.
func (e *env) parse(args []string) ([]string, error) {
	if err := e.flags.Parse(args); err != nil {
		return nil, err
	}
	return e.flags.Args(), nil
}

func (e *env) loadConfig() (*types.Config, error) {
	cfg, err := config.Load(e.config, e.flags)
	if err != nil {
		return nil, err
	}
	e.log, err = logger.NewDevelopmentLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e *env) client(opts ...solanapay.Option) (*solanapay.SolanaPay, *types.Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]solanapay.Option{solanapay.WithLogger(e.log)}, opts...)
	pay, err := solanapay.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return pay, cfg, nil
}

func (e *env) sync() {
	if e.log != nil {
		_ = e.log.Sync()
	}
}
