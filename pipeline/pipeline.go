// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package pipeline runs one end-to-end proving job: walk the ledger,
// assemble the request, obtain a proof, submit it and wait for settlement.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/histproof/histproof/gateway"
	"github.com/histproof/histproof/observation"
	"github.com/histproof/histproof/proofreq"
	"github.com/histproof/histproof/prover"
)

type Input struct {
	Identifier      string
	PartnerKey      string
	CallbackAddress string
}

type RequestConfig struct {
	IncludeReceipt bool `koanf:"include-receipt"`
}

type Config struct {
	Observation observation.Config `koanf:"observation"`
	Request     RequestConfig      `koanf:"request"`
	SrcChainId  uint64             `koanf:"src-chain-id"`
	DstChainId  uint64             `koanf:"dst-chain-id"`
	QueryOption int                `koanf:"query-option"`
}

var DefaultConfig = Config{
	Observation: observation.DefaultConfig,
	Request:     RequestConfig{IncludeReceipt: false},
	SrcChainId:  1,
	DstChainId:  11155111,
	QueryOption: int(gateway.ZkMode),
}

var TestConfig = Config{
	Observation: observation.TestConfig,
	Request:     RequestConfig{IncludeReceipt: false},
	SrcChainId:  1,
	DstChainId:  11155111,
	QueryOption: int(gateway.ZkMode),
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	observation.ConfigAddOptions(prefix+".observation", f)
	f.Bool(prefix+".request.include-receipt", DefaultConfig.Request.IncludeReceipt, "also prove the receipt of the identifier transaction")
	f.Uint64(prefix+".src-chain-id", DefaultConfig.SrcChainId, "chain id the observations are read from")
	f.Uint64(prefix+".dst-chain-id", DefaultConfig.DstChainId, "chain id the proof is settled on")
	f.Int(prefix+".query-option", DefaultConfig.QueryOption, "query option (0 = zk mode, 1 = op mode)")
}

func (c *Config) Validate() error {
	if err := c.Observation.Validate(); err != nil {
		return fmt.Errorf("observation: %w", err)
	}
	if c.DstChainId == 0 {
		return gateway.ErrNoDstChain
	}
	if c.QueryOption != int(gateway.ZkMode) && c.QueryOption != int(gateway.OpMode) {
		return fmt.Errorf("invalid query-option %d", c.QueryOption)
	}
	return nil
}

// Result holds whatever the run produced, including partial output when a
// later stage failed.
type Result struct {
	Series  []observation.Observation
	Request *proofreq.ProofRequest
	Proof   *prover.Proof
	Receipt *gateway.Receipt
	Status  gateway.Status
}

type Pipeline struct {
	config  *Config
	fetcher *observation.Fetcher
	prover  prover.Prover
	gateway gateway.Client
}

func New(config *Config, reader observation.StorageReader, p prover.Prover, gw gateway.Client) *Pipeline {
	return &Pipeline{
		config:  config,
		fetcher: observation.NewFetcher(reader, &config.Observation),
		prover:  p,
		gateway: gw,
	}
}

// Run executes the stages in order; no stage starts before the previous one
// finished. The returned error, if any, is a *Error.
func (p *Pipeline) Run(ctx context.Context, input Input) (*Result, error) {
	if input.Identifier == "" {
		return nil, &Error{Kind: KindInput, Err: ErrEmptyIdentifier}
	}
	var txHash common.Hash
	if p.config.Request.IncludeReceipt {
		decoded, err := hexutil.Decode(input.Identifier)
		if err != nil || len(decoded) != common.HashLength {
			return nil, &Error{Kind: KindInput, Err: fmt.Errorf("%w: %q", ErrBadIdentifier, input.Identifier)}
		}
		txHash = common.BytesToHash(decoded)
	}
	opts := gateway.SubmitOptions{
		SrcChainId:      p.config.SrcChainId,
		DstChainId:      p.config.DstChainId,
		Option:          gateway.QueryOption(p.config.QueryOption),
		PartnerKey:      input.PartnerKey,
		CallbackAddress: input.CallbackAddress,
	}
	if err := opts.Validate(); err != nil {
		return nil, &Error{Kind: KindInput, Err: err}
	}
	log.Info("Send prove request", "identifier", input.Identifier)

	obsConfig := &p.config.Observation
	series, err := p.fetcher.Series(ctx, obsConfig.Count, obsConfig.StartBlock, obsConfig.ContractAddress(), obsConfig.SlotIndex)
	if err != nil {
		return nil, &Error{Kind: KindRead, Err: err}
	}
	result := &Result{Series: series}

	req := proofreq.NewProofRequest()
	if err := proofreq.Assemble(req, series); err != nil {
		return result, &Error{Kind: KindInput, Err: err}
	}
	if p.config.Request.IncludeReceipt {
		if err := req.AddReceipt(identifierReceipt(txHash), 0); err != nil {
			return result, &Error{Kind: KindInput, Err: err}
		}
	}
	result.Request = req

	proof, err := p.prover.Prove(ctx, req)
	if err != nil {
		logProveError(err)
		return result, &Error{Kind: KindProof, Err: err}
	}
	result.Proof = proof
	log.Info("proof", "bytes", len(proof.Data), "circuit", proof.CircuitDigest)

	receipt, err := p.gateway.Submit(ctx, req, proof, opts)
	if err != nil {
		log.Error("submitting proof", "err", err)
		return result, &Error{Kind: KindSubmission, Err: err}
	}
	result.Receipt = receipt

	status, err := p.gateway.Wait(ctx, receipt.QueryKey, opts.DstChainId)
	result.Status = status
	if err != nil {
		log.Error("waiting for query", "query", receipt.QueryKey, "err", err)
		return result, &Error{Kind: KindSubmission, Err: err}
	}
	if !status.Succeeded() {
		return result, &Error{Kind: KindSubmission, Err: &StatusError{Status: status}}
	}
	return result, nil
}

// identifierReceipt selects topic 1 and data field 0 of the first log.
func identifierReceipt(txHash common.Hash) proofreq.ReceiptData {
	return proofreq.ReceiptData{
		TxHash: txHash,
		Fields: []proofreq.LogFieldData{
			{LogPos: 0, IsTopic: true, FieldIndex: 1},
			{LogPos: 0, IsTopic: false, FieldIndex: 0},
		},
	}
}

func logProveError(err error) {
	var proveErr *prover.ProveError
	if !errors.As(err, &proveErr) {
		log.Error("prover unreachable", "err", err)
		return
	}
	switch prover.KindOf(err) {
	case prover.KindInvalidInput:
		log.Error("invalid receipt/storage/transaction input", "code", proveErr.Code, "msg", proveErr.Msg)
	case prover.KindInvalidCustomInput:
		log.Error("invalid custom input", "code", proveErr.Code, "msg", proveErr.Msg)
	default:
		log.Error("failed to prove", "code", proveErr.Code, "msg", proveErr.Msg)
	}
}
