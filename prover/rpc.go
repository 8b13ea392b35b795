// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/histproof/histproof/proofreq"
	"github.com/histproof/histproof/util/rpcclient"
)

// RPCProver sends one prover_prove call per request.
type RPCProver struct {
	client *rpcclient.RpcClient
}

func NewRPCProver(ctx context.Context, config rpcclient.ClientConfigFetcher) (*RPCProver, error) {
	client := rpcclient.NewRpcClient(config)
	if err := client.Start(ctx); err != nil {
		return nil, &TransportError{Err: err}
	}
	return &RPCProver{client: client}, nil
}

func (p *RPCProver) Prove(ctx context.Context, req *proofreq.ProofRequest) (*Proof, error) {
	defer proveTimer.UpdateSince(time.Now())
	var resp ProveResponse
	err := p.client.CallContext(ctx, &resp, Namespace+"_prove", req.ToJson())
	if err != nil {
		err = &TransportError{Err: err}
		countResult(err)
		return nil, err
	}
	proof, err := ProofFromResponse(&resp)
	countResult(err)
	if err == nil {
		log.Info("proof received", "prover", proof.ProverID, "circuit", proof.CircuitDigest, "bytes", len(proof.Data))
	}
	return proof, err
}

func (p *RPCProver) Close() {
	p.client.Close()
}

// ServerAPI exposes a Prover under the prover namespace.
type ServerAPI struct {
	backend Prover
}

func NewServerAPI(backend Prover) *ServerAPI {
	return &ServerAPI{backend: backend}
}

// Prove answers in band for prove errors. Anything else fails the call.
func (a *ServerAPI) Prove(ctx context.Context, entry *proofreq.ProofRequestJson) (*ProveResponse, error) {
	req, err := proofreq.ProofRequestFromJson(entry)
	if err != nil {
		return ResponseFromProof(nil, &ProveError{Code: ErrCodeInvalidInput, Msg: err.Error()})
	}
	return ResponseFromProof(a.backend.Prove(ctx, req))
}
