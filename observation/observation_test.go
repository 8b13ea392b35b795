// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package observation

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/histproof/histproof/util/testhelpers"
)

var errUnreachable = errors.New("missing trie node")

// stubReader returns the block number as the stored value and fails at a
// configured block.
type stubReader struct {
	mutex     sync.Mutex
	calls     []uint64
	slots     []common.Hash
	failAt    *uint64
	raw       []byte
	delay     time.Duration
	inFlight  int64
	maxFlight int64
}

func (r *stubReader) StorageAt(ctx context.Context, account common.Address, key common.Hash, blockNumber *big.Int) ([]byte, error) {
	current := atomic.AddInt64(&r.inFlight, 1)
	defer atomic.AddInt64(&r.inFlight, -1)
	for {
		seen := atomic.LoadInt64(&r.maxFlight)
		if current <= seen || atomic.CompareAndSwapInt64(&r.maxFlight, seen, current) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	var block uint64
	if blockNumber != nil {
		block = blockNumber.Uint64()
	}
	r.mutex.Lock()
	r.calls = append(r.calls, block)
	r.slots = append(r.slots, key)
	r.mutex.Unlock()
	if r.failAt != nil && *r.failAt == block {
		return nil, errUnreachable
	}
	if r.raw != nil {
		return r.raw, nil
	}
	return common.BigToHash(new(big.Int).SetUint64(block)).Bytes(), nil
}

func (r *stubReader) callCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.calls)
}

func checkSeries(t *testing.T, series []Observation, count int, start uint64) {
	t.Helper()
	if len(series) != count {
		Fail(t, "series length", len(series), "expected", count)
	}
	for i, obs := range series {
		expected := start - uint64(i)
		if obs.BlockNumber != expected {
			Fail(t, "position", i, "has block", obs.BlockNumber, "expected", expected)
		}
		if obs.Value != common.BigToHash(new(big.Int).SetUint64(expected)) {
			Fail(t, "position", i, "has unexpected value", obs.Value)
		}
		if obs.Slot != series[0].Slot || obs.Address != series[0].Address {
			Fail(t, "slot or address changed within a series at position", i)
		}
	}
}

func TestSeriesHeights(t *testing.T) {
	t.Parallel()
	address := testhelpers.RandomAddress()
	for _, tc := range []struct {
		count int
		start uint64
	}{
		{1, 0},
		{1, 100},
		{3, 100},
		{101, 100},
		{64, 19308799},
	} {
		tc := tc
		t.Run(fmt.Sprintf("%d-from-%d", tc.count, tc.start), func(t *testing.T) {
			t.Parallel()
			reader := &stubReader{}
			fetcher := NewFetcher(reader, &TestConfig)
			series, err := fetcher.Series(context.Background(), tc.count, tc.start, address, 0)
			Require(t, err)
			checkSeries(t, series, tc.count, tc.start)
			if reader.callCount() != tc.count {
				Fail(t, "expected one read per observation, got", reader.callCount())
			}
			for i, block := range reader.calls {
				if block != tc.start-uint64(i) {
					Fail(t, "read", i, "hit block", block)
				}
			}
		})
	}
}

func TestSeriesAbortsOnReadError(t *testing.T) {
	t.Parallel()
	const count = 5
	const start = uint64(100)
	for k := 1; k <= count; k++ {
		failAt := start - uint64(k-1)
		reader := &stubReader{failAt: &failAt}
		fetcher := NewFetcher(reader, &TestConfig)
		series, err := fetcher.Series(context.Background(), count, start, testhelpers.RandomAddress(), 0)
		if series != nil {
			Fail(t, "partial series returned when failing at iteration", k)
		}
		var readErr *ReadError
		if !errors.As(err, &readErr) {
			Fail(t, "expected ReadError, got", err)
		}
		if readErr.Block != failAt || !errors.Is(err, errUnreachable) {
			Fail(t, "unexpected read error", err)
		}
		if reader.callCount() != k {
			Fail(t, "walk continued after failure at iteration", k, "reads", reader.callCount())
		}
	}
}

func TestSeriesRejectsBadBounds(t *testing.T) {
	t.Parallel()
	reader := &stubReader{}
	fetcher := NewFetcher(reader, &TestConfig)
	if _, err := fetcher.Series(context.Background(), 0, 100, common.Address{}, 0); !errors.Is(err, ErrInvalidCount) {
		Fail(t, "zero count accepted", err)
	}
	if _, err := fetcher.Series(context.Background(), 102, 100, common.Address{}, 0); !errors.Is(err, ErrBelowGenesis) {
		Fail(t, "walk below genesis accepted", err)
	}
	if reader.callCount() != 0 {
		Fail(t, "reads issued for a rejected walk")
	}
}

func TestSlotRendering(t *testing.T) {
	t.Parallel()
	address := testhelpers.RandomAddress()

	legacy := &stubReader{}
	config := TestConfig
	config.LegacyZeroSlot = true
	obs, err := NewFetcher(legacy, &config).FetchAt(context.Background(), 10, address, 7)
	Require(t, err)
	if obs.Slot != (common.Hash{}) {
		Fail(t, "legacy mode recorded slot", obs.Slot)
	}
	if legacy.slots[0] != SlotForIndex(7) {
		Fail(t, "legacy mode read slot", legacy.slots[0])
	}

	derived := &stubReader{}
	config.LegacyZeroSlot = false
	obs, err = NewFetcher(derived, &config).FetchAt(context.Background(), 10, address, 7)
	Require(t, err)
	if obs.Slot != common.HexToHash("0x07") || derived.slots[0] != obs.Slot {
		Fail(t, "derived mode slot mismatch", obs.Slot, derived.slots[0])
	}
	if obs.Address != address || obs.BlockNumber != 10 {
		Fail(t, "unexpected observation", obs)
	}
}

func TestFetchValueNormalization(t *testing.T) {
	t.Parallel()
	short := &stubReader{raw: []byte{0x12, 0x34}}
	obs, err := NewFetcher(short, &TestConfig).FetchAt(context.Background(), 1, common.Address{}, 0)
	Require(t, err)
	if obs.Value != common.HexToHash("0x1234") {
		Fail(t, "short value not left padded", obs.Value)
	}

	long := &stubReader{raw: make([]byte, 33)}
	_, err = NewFetcher(long, &TestConfig).FetchAt(context.Background(), 1, common.Address{}, 0)
	var readErr *ReadError
	if !errors.As(err, &readErr) {
		Fail(t, "oversized value accepted", err)
	}
}

func TestParallelSeriesPreservesOrder(t *testing.T) {
	t.Parallel()
	reader := &stubReader{delay: 5 * time.Millisecond}
	config := TestConfig
	config.FetchConcurrency = 4
	address := testhelpers.RandomAddress()
	series, err := NewFetcher(reader, &config).Series(context.Background(), 32, 1000, address, 0)
	Require(t, err)
	checkSeries(t, series, 32, 1000)

	sequential, err := NewFetcher(&stubReader{}, &TestConfig).Series(context.Background(), 32, 1000, address, 0)
	Require(t, err)
	if diff := cmp.Diff(sequential, series); diff != "" {
		Fail(t, "parallel walk differs from sequential walk", diff)
	}
	if peak := atomic.LoadInt64(&reader.maxFlight); peak > 4 {
		Fail(t, "too many reads in flight", peak)
	}
}

func TestParallelSeriesFails(t *testing.T) {
	t.Parallel()
	failAt := uint64(990)
	reader := &stubReader{failAt: &failAt}
	config := TestConfig
	config.FetchConcurrency = 3
	series, err := NewFetcher(reader, &config).Series(context.Background(), 32, 1000, common.Address{}, 0)
	if series != nil || !errors.Is(err, errUnreachable) {
		Fail(t, "expected failed walk, got", len(series), err)
	}
}

func TestSequentialSeriesHasOneReadInFlight(t *testing.T) {
	t.Parallel()
	reader := &stubReader{delay: time.Millisecond}
	_, err := NewFetcher(reader, &TestConfig).Series(context.Background(), 10, 50, common.Address{}, 0)
	Require(t, err)
	if peak := atomic.LoadInt64(&reader.maxFlight); peak != 1 {
		Fail(t, "sequential walk had", peak, "reads in flight")
	}
}

func TestCachingReader(t *testing.T) {
	t.Parallel()
	inner := &stubReader{}
	reader, err := NewCachingReader(inner, 16)
	Require(t, err)
	fetcher := NewFetcher(reader, &TestConfig)
	address := testhelpers.RandomAddress()

	first, err := fetcher.Series(context.Background(), 8, 40, address, 0)
	Require(t, err)
	second, err := fetcher.Series(context.Background(), 8, 40, address, 0)
	Require(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		Fail(t, "cached series differs", diff)
	}
	if inner.callCount() != 8 {
		Fail(t, "cache did not absorb repeated reads, calls:", inner.callCount())
	}

	_, err = reader.StorageAt(context.Background(), address, common.Hash{}, nil)
	Require(t, err)
	if inner.callCount() != 9 {
		Fail(t, "head read should bypass the cache")
	}

	same, err := NewCachingReader(inner, 0)
	Require(t, err)
	if same != StorageReader(inner) {
		Fail(t, "zero size cache should return the reader unchanged")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	config := DefaultConfig
	Require(t, config.Validate())
	if config.ContractAddress() != common.HexToAddress("0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640") {
		Fail(t, "unexpected contract address", config.ContractAddress())
	}

	for name, mutate := range map[string]func(*Config){
		"count":       func(c *Config) { c.Count = 0 },
		"genesis":     func(c *Config) { c.Count = 11; c.StartBlock = 9 },
		"address":     func(c *Config) { c.Address = "0x1234" },
		"concurrency": func(c *Config) { c.FetchConcurrency = 0 },
		"cache":       func(c *Config) { c.CacheSize = -1 },
	} {
		invalid := DefaultConfig
		mutate(&invalid)
		if invalid.Validate() == nil {
			Fail(t, "invalid", name, "accepted")
		}
	}
}

func Require(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, printables...)
}

func Fail(t *testing.T, printables ...interface{}) {
	t.Helper()
	testhelpers.FailImpl(t, printables...)
}
