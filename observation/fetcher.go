// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package observation

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	storageReadCounter      = metrics.NewRegisteredCounter("histproof/observation/reads", nil)
	storageReadErrorCounter = metrics.NewRegisteredCounter("histproof/observation/read_errors", nil)
	seriesTimer             = metrics.NewRegisteredTimer("histproof/observation/series", nil)
)

// Fetcher performs point-in-time storage reads. It never caches or retries;
// wrap the reader with NewCachingReader for caching.
type Fetcher struct {
	reader         StorageReader
	legacyZeroSlot bool
	concurrency    int
}

func NewFetcher(reader StorageReader, config *Config) *Fetcher {
	concurrency := config.FetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Fetcher{
		reader:         reader,
		legacyZeroSlot: config.LegacyZeroSlot,
		concurrency:    concurrency,
	}
}

// FetchAt reads the slot derived from index at the given block. In legacy
// zero-slot mode the recorded slot is always the zero key, whatever index was
// read.
func (f *Fetcher) FetchAt(ctx context.Context, block uint64, address common.Address, index uint64) (Observation, error) {
	readSlot := SlotForIndex(index)
	recordedSlot := readSlot
	if f.legacyZeroSlot {
		recordedSlot = common.Hash{}
	}
	raw, err := f.reader.StorageAt(ctx, address, readSlot, new(big.Int).SetUint64(block))
	if err != nil {
		storageReadErrorCounter.Inc(1)
		return Observation{}, &ReadError{Block: block, Err: err}
	}
	if len(raw) > common.HashLength {
		storageReadErrorCounter.Inc(1)
		return Observation{}, &ReadError{
			Block: block,
			Err:   fmt.Errorf("storage value is %d bytes, expected at most %d", len(raw), common.HashLength),
		}
	}
	storageReadCounter.Inc(1)
	value := common.BytesToHash(raw)
	log.Debug("read storage", "block", block, "address", address, "slot", readSlot, "value", value)
	return Observation{
		BlockNumber: block,
		Address:     address,
		Slot:        recordedSlot,
		Value:       value,
	}, nil
}

// Series collects exactly count observations at blocks start, start-1, ...,
// start-count+1, in that order. Any failed read aborts the whole walk.
func (f *Fetcher) Series(ctx context.Context, count int, start uint64, address common.Address, index uint64) ([]Observation, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}
	if uint64(count-1) > start {
		return nil, fmt.Errorf("%w: %d observations from block %d", ErrBelowGenesis, count, start)
	}
	defer seriesTimer.UpdateSince(time.Now())
	if f.concurrency == 1 {
		return f.sequentialSeries(ctx, count, start, address, index)
	}
	return f.parallelSeries(ctx, count, start, address, index)
}

func (f *Fetcher) sequentialSeries(ctx context.Context, count int, start uint64, address common.Address, index uint64) ([]Observation, error) {
	series := make([]Observation, 0, count)
	cursor := start
	for len(series) < count {
		obs, err := f.FetchAt(ctx, cursor, address, index)
		if err != nil {
			return nil, err
		}
		series = append(series, obs)
		cursor--
	}
	return series, nil
}

// parallelSeries keeps at most f.concurrency reads in flight. Each result is
// stored at its walk position, so the order matches the sequential walk.
func (f *Fetcher) parallelSeries(ctx context.Context, count int, start uint64, address common.Address, index uint64) ([]Observation, error) {
	series := make([]Observation, count)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(f.concurrency)
	for i := 0; i < count; i++ {
		i := i
		block := start - uint64(i)
		group.Go(func() error {
			obs, err := f.FetchAt(groupCtx, block, address, index)
			if err != nil {
				return err
			}
			series[i] = obs
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return series, nil
}
