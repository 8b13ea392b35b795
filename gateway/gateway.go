// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package gateway submits proofs to the settlement gateway and follows the
// resulting query until it is settled.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/histproof/histproof/proofreq"
	"github.com/histproof/histproof/prover"
	"github.com/histproof/histproof/util/jsonapi"
	"github.com/histproof/histproof/util/rpcclient"
)

const Namespace string = "gateway"

var (
	submitCounter      = metrics.NewRegisteredCounter("histproof/gateway/submissions", nil)
	submitErrorCounter = metrics.NewRegisteredCounter("histproof/gateway/submission_errors", nil)
	pollCounter        = metrics.NewRegisteredCounter("histproof/gateway/polls", nil)
	waitTimer          = metrics.NewRegisteredTimer("histproof/gateway/wait", nil)
)

var (
	ErrEmptyProof       = errors.New("cannot submit an empty proof")
	ErrNoDstChain       = errors.New("destination chain id must be set")
	ErrBadCallback      = errors.New("callback address is not a hex address")
	ErrWaitTimeout      = errors.New("query did not reach a terminal status in time")
	ErrNoQueryKeyResult = errors.New("gateway returned no query key")
)

type QueryOption int

const (
	ZkMode QueryOption = 0
	OpMode QueryOption = 1
)

type QueryKey struct {
	QueryHash common.Hash
	Nonce     uint64
}

func (k QueryKey) String() string {
	return fmt.Sprintf("%v/%d", k.QueryHash, k.Nonce)
}

type Receipt struct {
	QueryKey QueryKey
	Fee      string
}

type SubmitOptions struct {
	SrcChainId      uint64
	DstChainId      uint64
	Option          QueryOption
	PartnerKey      string
	CallbackAddress string
}

func (o *SubmitOptions) Validate() error {
	if o.DstChainId == 0 {
		return ErrNoDstChain
	}
	if o.CallbackAddress != "" && !common.IsHexAddress(o.CallbackAddress) {
		return fmt.Errorf("%w: %q", ErrBadCallback, o.CallbackAddress)
	}
	return nil
}

type Client interface {
	Submit(ctx context.Context, req *proofreq.ProofRequest, proof *prover.Proof, opts SubmitOptions) (*Receipt, error)
	// Wait returns the first terminal status. Failed and expired queries are
	// reported as a status, not as an error.
	Wait(ctx context.Context, key QueryKey, dstChainId uint64) (Status, error)
}

type QueryKeyJson struct {
	QueryHash common.Hash         `json:"query_hash"`
	Nonce     jsonapi.Uint64String `json:"nonce"`
}

func (k QueryKey) ToJson() *QueryKeyJson {
	return &QueryKeyJson{QueryHash: k.QueryHash, Nonce: jsonapi.Uint64String(k.Nonce)}
}

func QueryKeyFromJson(entry *QueryKeyJson) QueryKey {
	return QueryKey{QueryHash: entry.QueryHash, Nonce: uint64(entry.Nonce)}
}

type SubmitProofArgs struct {
	Request         *proofreq.ProofRequestJson `json:"request"`
	Proof           hexutil.Bytes              `json:"proof"`
	CircuitDigest   common.Hash                `json:"circuit_digest"`
	ProverID        string                     `json:"prover_id"`
	SrcChainId      hexutil.Uint64             `json:"src_chain_id"`
	DstChainId      hexutil.Uint64             `json:"dst_chain_id"`
	Option          QueryOption                `json:"option"`
	PartnerKey      string                     `json:"partner_key,omitempty"`
	CallbackAddress string                     `json:"callback_address,omitempty"`
}

type SubmitProofResult struct {
	QueryKey *QueryKeyJson `json:"query_key"`
	Fee      string        `json:"fee"`
}

type QueryStatusResult struct {
	Status Status      `json:"status"`
	TxHash common.Hash `json:"tx_hash"`
}

type Config struct {
	RPC          rpcclient.ClientConfig `koanf:"rpc"`
	PollInterval time.Duration          `koanf:"poll-interval"`
	WaitTimeout  time.Duration          `koanf:"wait-timeout"`
}

var DefaultRPCConfig = rpcclient.ClientConfig{
	URL:            "https://appsdkv3.brevis.network",
	JWTSecret:      "",
	Timeout:        time.Minute,
	Retries:        0,
	ConnectionWait: 0,
	ArgLogLimit:    2048,
	RetryDelay:     2 * time.Second,
}

var DefaultConfig = Config{
	RPC:          DefaultRPCConfig,
	PollInterval: 12 * time.Second,
	WaitTimeout:  time.Hour,
}

var TestConfig = Config{
	RPC:          rpcclient.TestClientConfig,
	PollInterval: 5 * time.Millisecond,
	WaitTimeout:  time.Minute,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	rpcclient.RPCClientAddOptions(prefix+".rpc", f, &DefaultConfig.RPC)
	f.Duration(prefix+".poll-interval", DefaultConfig.PollInterval, "interval between query status polls")
	f.Duration(prefix+".wait-timeout", DefaultConfig.WaitTimeout, "maximum time to wait for a terminal query status (0 = no limit)")
}

func (c *Config) Validate() error {
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("gateway rpc: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("gateway poll-interval must be positive, got %v", c.PollInterval)
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("gateway wait-timeout cannot be negative, got %v", c.WaitTimeout)
	}
	return nil
}

type ConfigFetcher func() *Config

// RPCClient talks to the gateway over JSON-RPC.
type RPCClient struct {
	config ConfigFetcher
	client *rpcclient.RpcClient
}

func NewRPCClient(ctx context.Context, config ConfigFetcher) (*RPCClient, error) {
	client := rpcclient.NewRpcClient(func() *rpcclient.ClientConfig { return &config().RPC })
	if err := client.Start(ctx); err != nil {
		return nil, err
	}
	return &RPCClient{
		config: config,
		client: client,
	}, nil
}

func (c *RPCClient) Close() {
	c.client.Close()
}

func (c *RPCClient) Submit(ctx context.Context, req *proofreq.ProofRequest, proof *prover.Proof, opts SubmitOptions) (*Receipt, error) {
	if proof == nil || len(proof.Data) == 0 {
		return nil, ErrEmptyProof
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	submitCounter.Inc(1)
	args := &SubmitProofArgs{
		Request:         req.ToJson(),
		Proof:           proof.Data,
		CircuitDigest:   proof.CircuitDigest,
		ProverID:        proof.ProverID,
		SrcChainId:      hexutil.Uint64(opts.SrcChainId),
		DstChainId:      hexutil.Uint64(opts.DstChainId),
		Option:          opts.Option,
		PartnerKey:      opts.PartnerKey,
		CallbackAddress: opts.CallbackAddress,
	}
	var res SubmitProofResult
	// A repeated submission is a second settlement request, so never retry.
	if err := c.client.CallOnce(ctx, &res, Namespace+"_submitProof", args); err != nil {
		submitErrorCounter.Inc(1)
		return nil, err
	}
	if res.QueryKey == nil {
		submitErrorCounter.Inc(1)
		return nil, ErrNoQueryKeyResult
	}
	receipt := &Receipt{
		QueryKey: QueryKeyFromJson(res.QueryKey),
		Fee:      res.Fee,
	}
	log.Info("proof submitted", "query", receipt.QueryKey, "fee", receipt.Fee, "dstChain", opts.DstChainId)
	return receipt, nil
}

func (c *RPCClient) status(ctx context.Context, key QueryKey, dstChainId uint64) (*QueryStatusResult, error) {
	pollCounter.Inc(1)
	var res QueryStatusResult
	err := c.client.CallContext(ctx, &res, Namespace+"_getQueryStatus", key.ToJson(), hexutil.Uint64(dstChainId))
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Wait polls right away and then every poll interval.
func (c *RPCClient) Wait(ctx context.Context, key QueryKey, dstChainId uint64) (Status, error) {
	defer waitTimer.UpdateSince(time.Now())
	config := c.config()
	if config.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.WaitTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()
	last := StatusUndefined
	for {
		res, err := c.status(ctx, key, dstChainId)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return last, fmt.Errorf("%w: last status %v", ErrWaitTimeout, last)
			}
			return last, fmt.Errorf("querying status of %v: %w", key, err)
		}
		last = res.Status
		if last.IsTerminal() {
			if last.Succeeded() {
				log.Info("query finalized", "query", key, "tx", res.TxHash)
			} else {
				log.Warn("query ended without finalizing", "query", key, "status", last)
			}
			return last, nil
		}
		log.Debug("polling query status", "query", key, "status", last)
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, fmt.Errorf("%w: last status %v", ErrWaitTimeout, last)
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
