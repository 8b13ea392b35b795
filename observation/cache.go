// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package observation

import (
	"context"
	"math/big"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/metrics"
)

var cacheHitCounter = metrics.NewRegisteredCounter("histproof/observation/cache_hits", nil)

type cacheKey struct {
	address common.Address
	slot    common.Hash
	block   uint64
}

// CachingReader memoizes historical reads. Reads without an explicit block
// refer to the chain head and are never cached.
type CachingReader struct {
	reader StorageReader
	cache  *lru.Cache[cacheKey, []byte]
}

// NewCachingReader wraps reader with an LRU of the given size. A size of zero
// returns reader unchanged.
func NewCachingReader(reader StorageReader, size int) (StorageReader, error) {
	if size <= 0 {
		return reader, nil
	}
	cache, err := lru.New[cacheKey, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachingReader{
		reader: reader,
		cache:  cache,
	}, nil
}

func (r *CachingReader) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	if blockNumber == nil || !blockNumber.IsUint64() {
		return r.reader.StorageAt(ctx, account, key, blockNumber)
	}
	ck := cacheKey{address: account, slot: key, block: blockNumber.Uint64()}
	if value, ok := r.cache.Get(ck); ok {
		cacheHitCounter.Inc(1)
		return common.CopyBytes(value), nil
	}
	value, err := r.reader.StorageAt(ctx, account, key, blockNumber)
	if err != nil {
		return nil, err
	}
	r.cache.Add(ck, common.CopyBytes(value))
	return value, nil
}
