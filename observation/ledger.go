// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package observation

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/histproof/histproof/util/rpcclient"
)

// DefaultLedgerRPCConfig never retries: a failed read fails the walk.
var DefaultLedgerRPCConfig = rpcclient.ClientConfig{
	URL:            "https://eth.llamarpc.com",
	JWTSecret:      "",
	Timeout:        30 * time.Second,
	Retries:        0,
	ConnectionWait: 0,
	ArgLogLimit:    2048,
	RetryErrors:    "",
}

// Caller is the subset of *rpcclient.RpcClient used to talk to the ledger.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// LedgerReader reads storage through eth_getStorageAt, so reads get the
// timeout and logging behavior of the underlying client.
type LedgerReader struct {
	client Caller
}

func NewLedgerReader(client Caller) *LedgerReader {
	return &LedgerReader{client: client}
}

func (r *LedgerReader) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	var result hexutil.Bytes
	block := "latest"
	if blockNumber != nil {
		block = hexutil.EncodeBig(blockNumber)
	}
	if err := r.client.CallContext(ctx, &result, "eth_getStorageAt", account, key, block); err != nil {
		return nil, err
	}
	return result, nil
}
