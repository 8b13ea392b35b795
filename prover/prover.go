// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package prover obtains proofs for assembled proof requests from a remote
// prover service.
package prover

import (
	"context"
	"errors"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/histproof/histproof/proofreq"
	"github.com/histproof/histproof/pubsub"
	"github.com/histproof/histproof/util/redisutil"
	"github.com/histproof/histproof/util/rpcclient"
)

const Namespace string = "prover"

var (
	proveCounter      = metrics.NewRegisteredCounter("histproof/prover/requests", nil)
	proveTimer        = metrics.NewRegisteredTimer("histproof/prover/duration", nil)
	proveErrorCounter = map[Kind]metrics.Counter{
		KindInvalidInput:       metrics.NewRegisteredCounter("histproof/prover/errors/invalid_input", nil),
		KindInvalidCustomInput: metrics.NewRegisteredCounter("histproof/prover/errors/invalid_custom_input", nil),
		KindFailedToProve:      metrics.NewRegisteredCounter("histproof/prover/errors/failed_to_prove", nil),
		KindTransport:          metrics.NewRegisteredCounter("histproof/prover/errors/transport", nil),
	}
)

// Proof is opaque to this module.
type Proof struct {
	Data          []byte
	CircuitDigest common.Hash
	ProverID      string
}

type Prover interface {
	Prove(ctx context.Context, req *proofreq.ProofRequest) (*Proof, error)
}

type ProveErrorJson struct {
	Code ErrCode `json:"code"`
	Msg  string  `json:"msg"`
}

type ProveResponse struct {
	HasErr        bool            `json:"has_err"`
	Err           *ProveErrorJson `json:"err,omitempty"`
	Proof         hexutil.Bytes   `json:"proof"`
	CircuitDigest common.Hash     `json:"circuit_digest"`
	ProverID      string          `json:"prover_id"`
}

// ResponseFromProof builds the wire response for a proof or a prove error.
// Errors that are not a *ProveError are not representable in band.
func ResponseFromProof(proof *Proof, err error) (*ProveResponse, error) {
	if err != nil {
		var proveErr *ProveError
		if !errors.As(err, &proveErr) {
			return nil, err
		}
		return &ProveResponse{
			HasErr: true,
			Err:    &ProveErrorJson{Code: proveErr.Code, Msg: proveErr.Msg},
		}, nil
	}
	return &ProveResponse{
		Proof:         proof.Data,
		CircuitDigest: proof.CircuitDigest,
		ProverID:      proof.ProverID,
	}, nil
}

// ProofFromResponse turns a wire response into a proof or a *ProveError. A
// response with neither an error nor proof bytes is a failed proof.
func ProofFromResponse(resp *ProveResponse) (*Proof, error) {
	if resp == nil {
		return nil, &TransportError{Err: errors.New("empty prove response")}
	}
	if resp.HasErr {
		proveErr := &ProveError{Code: ErrCodeUndefined}
		if resp.Err != nil {
			proveErr.Code = resp.Err.Code
			proveErr.Msg = resp.Err.Msg
		}
		return nil, proveErr
	}
	if len(resp.Proof) == 0 {
		return nil, &ProveError{Code: ErrCodeFailedToProve, Msg: "prover returned no proof"}
	}
	return &Proof{
		Data:          resp.Proof,
		CircuitDigest: resp.CircuitDigest,
		ProverID:      resp.ProverID,
	}, nil
}

func countResult(err error) {
	proveCounter.Inc(1)
	if err != nil {
		proveErrorCounter[KindOf(err)].Inc(1)
	}
}

type Config struct {
	RPC         rpcclient.ClientConfig `koanf:"rpc"`
	RedisURL    string                 `koanf:"redis-url"`
	RedisStream string                 `koanf:"redis-stream"`
	Producer    pubsub.ProducerConfig  `koanf:"producer"`
}

var DefaultRPCConfig = rpcclient.ClientConfig{
	URL:            "http://localhost:33247",
	JWTSecret:      "",
	Timeout:        0,
	Retries:        0,
	ConnectionWait: 0,
	ArgLogLimit:    2048,
}

var DefaultConfig = Config{
	RPC:         DefaultRPCConfig,
	RedisURL:    "",
	RedisStream: "histproof_prove",
	Producer:    pubsub.DefaultProducerConfig,
}

var TestConfig = Config{
	RPC:         rpcclient.TestClientConfig,
	RedisURL:    "",
	RedisStream: "histproof_prove_test",
	Producer:    pubsub.TestProducerConfig,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	rpcclient.RPCClientAddOptions(prefix+".rpc", f, &DefaultConfig.RPC)
	f.String(prefix+".redis-url", DefaultConfig.RedisURL, "redis url for the prove request stream (if set, used instead of rpc)")
	f.String(prefix+".redis-stream", DefaultConfig.RedisStream, "redis stream carrying prove requests")
	pubsub.ProducerAddConfigAddOptions(prefix+".producer", f)
}

func (c *Config) Validate() error {
	if c.RedisURL != "" {
		if c.RedisStream == "" {
			return errors.New("prover redis-stream cannot be empty")
		}
		return nil
	}
	if err := c.RPC.Validate(); err != nil {
		return fmt.Errorf("prover rpc: %w", err)
	}
	return nil
}

// NewProver returns a Redis stream prover when redis-url is configured and a
// JSON-RPC prover otherwise. The returned closer releases the connection.
func NewProver(ctx context.Context, config *Config) (Prover, func(), error) {
	if config.RedisURL != "" {
		client, err := redisutil.Connect(ctx, config.RedisURL)
		if err != nil {
			return nil, nil, &TransportError{Err: err}
		}
		prover, err := NewRedisProver(client, config.RedisStream, &config.Producer)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return prover, func() { client.Close() }, nil
	}
	rpcConfig := config.RPC
	prover, err := NewRPCProver(ctx, func() *rpcclient.ClientConfig { return &rpcConfig })
	if err != nil {
		return nil, nil, err
	}
	return prover, prover.Close, nil
}
