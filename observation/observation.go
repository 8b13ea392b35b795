// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package observation reads historical storage values from an Ethereum node
// and arranges them into block-ordered series.
package observation

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
)

// Observation is a single point-in-time read of one storage slot.
type Observation struct {
	BlockNumber uint64
	Address     common.Address
	Slot        common.Hash
	Value       common.Hash
}

// StorageReader is the point-in-time storage read capability. *ethclient.Client
// satisfies it.
type StorageReader interface {
	StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error)
}

var (
	ErrInvalidCount = errors.New("observation count must be at least 1")
	ErrBelowGenesis = errors.New("walk would go below the genesis block")
)

// ReadError is returned when a storage read fails. The walk that hit it is
// aborted and no partial series is produced.
type ReadError struct {
	Block uint64
	Err   error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading storage at block %d: %v", e.Block, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type Config struct {
	Count            int    `koanf:"count"`
	StartBlock       uint64 `koanf:"start-block"`
	Address          string `koanf:"address"`
	SlotIndex        uint64 `koanf:"slot-index"`
	LegacyZeroSlot   bool   `koanf:"legacy-zero-slot"`
	FetchConcurrency int    `koanf:"fetch-concurrency"`
	CacheSize        int    `koanf:"cache-size"`
}

var DefaultConfig = Config{
	Count:            500,
	StartBlock:       19308799,
	Address:          "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
	SlotIndex:        0,
	LegacyZeroSlot:   true,
	FetchConcurrency: 1,
	CacheSize:        0,
}

var TestConfig = Config{
	Count:            3,
	StartBlock:       100,
	Address:          "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
	SlotIndex:        0,
	LegacyZeroSlot:   true,
	FetchConcurrency: 1,
	CacheSize:        0,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Int(prefix+".count", DefaultConfig.Count, "number of storage observations to collect")
	f.Uint64(prefix+".start-block", DefaultConfig.StartBlock, "block to start the backward walk from")
	f.String(prefix+".address", DefaultConfig.Address, "contract address whose storage is observed")
	f.Uint64(prefix+".slot-index", DefaultConfig.SlotIndex, "index of the storage slot to observe")
	f.Bool(prefix+".legacy-zero-slot", DefaultConfig.LegacyZeroSlot, "record the zero slot in every observation regardless of slot-index")
	f.Int(prefix+".fetch-concurrency", DefaultConfig.FetchConcurrency, "maximum number of storage reads in flight during the walk (1 = strictly sequential)")
	f.Int(prefix+".cache-size", DefaultConfig.CacheSize, "number of storage reads to keep in an in-memory cache (0 = disabled)")
}

func (c *Config) Validate() error {
	if c.Count < 1 {
		return ErrInvalidCount
	}
	if uint64(c.Count-1) > c.StartBlock {
		return fmt.Errorf("%w: %d observations from block %d", ErrBelowGenesis, c.Count, c.StartBlock)
	}
	if !common.IsHexAddress(c.Address) {
		return fmt.Errorf("invalid contract address %q", c.Address)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("fetch-concurrency must be at least 1, got %d", c.FetchConcurrency)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache-size cannot be negative, got %d", c.CacheSize)
	}
	return nil
}

func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Address)
}

// SlotForIndex renders a numeric slot index as a 32-byte storage key.
func SlotForIndex(index uint64) common.Hash {
	return uint256.NewInt(index).Bytes32()
}
