package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	solanapay "github.com/TrippyLeaf/solana-pay"
	"github.com/TrippyLeaf/solana-pay/codec"
	"github.com/TrippyLeaf/solana-pay/metrics"
	"github.com/TrippyLeaf/solana-pay/qr"
	"github.com/TrippyLeaf/solana-pay/server"
	"github.com/TrippyLeaf/solana-pay/store"
	"github.com/TrippyLeaf/solana-pay/types"
	"github.com/TrippyLeaf/solana-pay/utils"
)

var errUsage = errors.New("wrong number of arguments")

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	return args[0], nil
}

func runEncode(_ context.Context, e *env, args []string) error {
	fs := e.flags
	recipient := fs.String("recipient", "", "recipient wallet")
	amount := fs.String("amount", "", "amount in SOL or token units")
	splToken := fs.String("spl-token", "", "token mint, omit for SOL")
	references := fs.StringSlice("reference", nil, "reference key, repeatable")
	label := fs.String("label", "", "merchant label")
	message := fs.String("message", "", "purchase message")
	memo := fs.String("memo", "", "on-chain memo")
	link := fs.String("link", "", "encode a transaction request URL for this HTTPS link instead")
	if _, err := e.parse(args); err != nil {
		return err
	}

	var (
		out string
		err error
	)
	if *link != "" {
		out, err = codec.EncodeTransactionRequest(&types.TransactionRequestURL{Link: *link, Label: *label, Message: *message})
	} else {
		var intent *types.PaymentIntent
		intent, err = intentFromFlags(*recipient, *amount, *splToken, *references, *label, *message)
		if err != nil {
			return err
		}
		if fs.Changed("memo") {
			intent.Memo = memo
		}
		out, err = codec.Encode(intent)
	}
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func intentFromFlags(recipient, amount, splToken string, references []string, label, message string) (*types.PaymentIntent, error) {
	to, err := utils.ValidateAddress(recipient)
	if err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	intent := &types.PaymentIntent{Recipient: to, Label: label, Message: message}
	if amount != "" {
		if intent.Amount, err = utils.ValidateAmount(amount); err != nil {
			return nil, err
		}
	}
	if splToken != "" {
		mint, err := utils.ValidateAddress(splToken)
		if err != nil {
			return nil, fmt.Errorf("spl-token: %w", err)
		}
		intent.SPLToken = &mint
	}
	for _, r := range references {
		key, err := utils.ValidateAddress(r)
		if err != nil {
			return nil, fmt.Errorf("reference: %w", err)
		}
		intent.References = append(intent.References, key)
	}
	return intent, nil
}

func runDecode(_ context.Context, e *env, args []string) error {
	rest, err := e.parse(args)
	if err != nil {
		return err
	}
	descriptor, err := oneArg(rest)
	if err != nil {
		return err
	}
	parsed, err := codec.Parse(descriptor)
	if err != nil {
		return err
	}
	return printJSON(parsed)
}

func runBuild(ctx context.Context, e *env, args []string) error {
	payerFlag := e.flags.String("payer", "", "wallet paying for the transfer")
	rest, err := e.parse(args)
	if err != nil {
		return err
	}
	descriptor, err := oneArg(rest)
	if err != nil {
		return err
	}
	payer, err := utils.ValidateAddress(*payerFlag)
	if err != nil {
		return fmt.Errorf("payer: %w", err)
	}

	pay, _, err := e.client()
	if err != nil {
		return err
	}
	defer pay.Close()
	defer e.sync()

	intent, err := pay.Decode(descriptor)
	if err != nil {
		return err
	}
	tx, err := pay.BuildTransaction(ctx, payer, intent)
	if err != nil {
		return err
	}
	encoded, err := utils.EncodeBase64Tx(tx)
	if err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}

func runQR(_ context.Context, e *env, args []string) error {
	out := e.flags.StringP("out", "o", "solanapay.png", "output PNG file")
	size := e.flags.Int("size", qr.DefaultSize, "image edge in pixels")
	rest, err := e.parse(args)
	if err != nil {
		return err
	}
	descriptor, err := oneArg(rest)
	if err != nil {
		return err
	}
	if _, err := codec.Parse(descriptor); err != nil {
		return err
	}
	return qr.WriteFile(descriptor, *size, *out)
}

func runConfirm(ctx context.Context, e *env, args []string) error {
	wait := e.flags.Int("attempts", 1, "lookups before giving up")
	interval := e.flags.Duration("interval", 0, "delay between lookups")
	rest, err := e.parse(args)
	if err != nil {
		return err
	}
	descriptor, err := oneArg(rest)
	if err != nil {
		return err
	}

	pay, cfg, err := e.client()
	if err != nil {
		return err
	}
	defer pay.Close()
	defer e.sync()

	intent, err := pay.Decode(descriptor)
	if err != nil {
		return err
	}
	if len(intent.References) == 0 {
		return types.Errorf(types.ErrCodeValidation, "URL carries no reference to look up")
	}

	delay := *interval
	if delay <= 0 {
		delay = cfg.Settlement.PollInterval
	}
	result, err := pay.WaitForPayment(ctx, intent.References[0], intent, *wait, delay)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runSettle(ctx context.Context, e *env, args []string) error {
	rest, err := e.parse(args)
	if err != nil {
		return err
	}
	txBase64, err := oneArg(rest)
	if err != nil {
		return err
	}

	pay, _, err := e.client()
	if err != nil {
		return err
	}
	defer pay.Close()
	defer e.sync()

	result, err := pay.SettleBase64(ctx, txBase64)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runServe(ctx context.Context, e *env, args []string) error {
	e.flags.String("addr", "", "listen address")
	e.flags.String("base-url", "", "public origin for transaction request URLs")
	e.flags.String("database-dsn", "", "MySQL DSN, or file:/:memory: for SQLite")
	e.flags.Bool("metrics", false, "expose Prometheus metrics at /metrics")
	if _, err := e.parse(args); err != nil {
		return err
	}

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	defer e.sync()

	opts := []solanapay.Option{solanapay.WithLogger(e.log)}
	var serverOpts []server.Option
	if cfg.EnableMetrics {
		reg := prometheus.NewRegistry()
		recorder, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return err
		}
		opts = append(opts, solanapay.WithMetrics(recorder))
		serverOpts = append(serverOpts, server.WithMetricsHandler(metrics.Handler(reg)))
	}

	pay, err := solanapay.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer pay.Close()

	st, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	serverOpts = append(serverOpts, server.WithLogger(e.log))
	e.log.Info("starting server", map[string]any{
		"network": pay.Network().String(),
		"addr":    cfg.Server.Addr,
	})
	return server.New(pay, st, cfg.Server, serverOpts...).Run(ctx)
}
