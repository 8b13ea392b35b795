// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"

	"github.com/histproof/histproof/cmd/genericconf"
	"github.com/histproof/histproof/cmd/util/confighelpers"
	"github.com/histproof/histproof/gateway"
	"github.com/histproof/histproof/observation"
	"github.com/histproof/histproof/pipeline"
	"github.com/histproof/histproof/prover"
	"github.com/histproof/histproof/util/colors"
	"github.com/histproof/histproof/util/rpcclient"
)

func printSampleUsage(name string) {
	fmt.Printf("Sample usage: %s [flags] <tx-hash> [partner-key] [callback-address]\n", name)
	fmt.Printf("              %s --help\n", name)
}

func main() {
	os.Exit(mainImpl())
}

// Returns the exit code
func mainImpl() int {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	config, input, err := ParseHistproof(os.Args[1:])
	if err != nil {
		confighelpers.PrintErrorAndExit(err, printSampleUsage)
	}
	if config.Conf.Dump {
		return 0
	}
	if err := genericconf.InitLog(config.LogType, config.LogLevel, &config.FileLogging, genericconf.DefaultPathResolver("")); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	defer func() {
		if err := genericconf.CloseLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
		}
	}()

	// Fail fast before dialing anything.
	if input.Identifier == "" {
		err := &pipeline.Error{Kind: pipeline.KindInput, Err: pipeline.ErrEmptyIdentifier}
		log.Error("invalid input", "err", err)
		return report(os.Stderr, nil, err)
	}

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigint:
			log.Info("shutting down because of sigint")
			cancelFunc()
		case <-ctx.Done():
		}
	}()

	result, err := run(ctx, config, input)
	out := io.Writer(os.Stdout)
	if err != nil {
		log.Error("run failed", "err", err)
		out = os.Stderr
	}
	return report(out, result, err)
}

// report prints the final outcome of a run and returns the exit code.
func report(w io.Writer, result *pipeline.Result, err error) int {
	var statusErr *pipeline.StatusError
	switch {
	case err == nil:
		colors.Fprint(w, colors.Mint, "query ", result.Receipt.QueryKey, " finished with status ", result.Status)
	case errors.As(err, &statusErr) && result != nil && result.Receipt != nil:
		colors.Fprint(w, colors.Yellow, "query ", result.Receipt.QueryKey, " ended with status ", statusErr.Status)
	default:
		colors.Fprint(w, colors.Red, "ERROR: ", err)
	}
	return pipeline.ExitCode(err)
}

func run(ctx context.Context, config *HistproofConfig, input *pipeline.Input) (*pipeline.Result, error) {
	ledgerRpc := rpcclient.NewRpcClient(func() *rpcclient.ClientConfig { return &config.Ledger })
	if err := ledgerRpc.Start(ctx); err != nil {
		return nil, &pipeline.Error{Kind: pipeline.KindRead, Err: fmt.Errorf("connecting to ledger: %w", err)}
	}
	defer ledgerRpc.Close()
	reader, err := observation.NewCachingReader(observation.NewLedgerReader(ledgerRpc), config.Pipeline.Observation.CacheSize)
	if err != nil {
		return nil, err
	}

	proofClient, closeProver, err := prover.NewProver(ctx, &config.Prover)
	if err != nil {
		return nil, &pipeline.Error{Kind: pipeline.KindProof, Err: err}
	}
	defer closeProver()

	gatewayClient, err := gateway.NewRPCClient(ctx, func() *gateway.Config { return &config.Gateway })
	if err != nil {
		return nil, &pipeline.Error{Kind: pipeline.KindSubmission, Err: fmt.Errorf("connecting to gateway: %w", err)}
	}
	defer gatewayClient.Close()

	return pipeline.New(&config.Pipeline, reader, proofClient, gatewayClient).Run(ctx, *input)
}
