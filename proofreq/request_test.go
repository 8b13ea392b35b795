// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package proofreq

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/histproof/histproof/observation"
	"github.com/histproof/histproof/util/testhelpers"
)

func randomSeries(count int, start uint64) []observation.Observation {
	address := testhelpers.RandomAddress()
	series := make([]observation.Observation, 0, count)
	for i := 0; i < count; i++ {
		series = append(series, observation.Observation{
			BlockNumber: start - uint64(i),
			Address:     address,
			Slot:        common.Hash{},
			Value:       testhelpers.RandomHash(),
		})
	}
	return series
}

func TestAssemblePositions(t *testing.T) {
	t.Parallel()
	for _, count := range []int{1, 2, 3, 64, 500} {
		count := count
		t.Run(fmt.Sprintf("%d observations", count), func(t *testing.T) {
			t.Parallel()
			series := randomSeries(count, 19308799)
			req := NewProofRequest()
			Require(t, Assemble(req, series))
			Require(t, req.CheckContiguous())

			if req.NumStorage() != count {
				Fail(t, "request holds", req.NumStorage(), "storage entries")
			}
			positions := req.StoragePositions()
			for i := range series {
				if positions[i] != i {
					Fail(t, "unexpected position list", positions)
				}
				obs, ok := req.StorageAt(i)
				if !ok || obs != series[i] {
					Fail(t, "position", i, "does not hold series element", i)
				}
			}
			if diff := cmp.Diff(series, req.Storage()); diff != "" {
				Fail(t, "ordered storage differs from series", diff)
			}
		})
	}
}

func TestPinningErrors(t *testing.T) {
	t.Parallel()
	req := NewProofRequest()
	obs := randomSeries(1, 10)[0]
	Require(t, req.AddStorage(obs, 0))
	if err := req.AddStorage(obs, 0); !errors.Is(err, ErrPositionTaken) {
		Fail(t, "collision not reported", err)
	}
	if err := req.AddStorage(obs, -1); !errors.Is(err, ErrNegativePosition) {
		Fail(t, "negative position accepted", err)
	}
	if err := Assemble(req, randomSeries(2, 10)); !errors.Is(err, ErrPositionTaken) {
		Fail(t, "assembling into an occupied request succeeded", err)
	}

	gappy := NewProofRequest()
	Require(t, gappy.AddStorage(obs, 0))
	Require(t, gappy.AddStorage(obs, 2))
	if err := gappy.CheckContiguous(); !errors.Is(err, ErrNotContiguous) {
		Fail(t, "gap not detected", err)
	}

	receipts := NewProofRequest()
	Require(t, receipts.AddReceipt(ReceiptData{TxHash: testhelpers.RandomHash()}, 1))
	if err := receipts.CheckContiguous(); !errors.Is(err, ErrNotContiguous) {
		Fail(t, "receipt gap not detected", err)
	}
	if err := receipts.AddReceipt(ReceiptData{}, 1); !errors.Is(err, ErrPositionTaken) {
		Fail(t, "receipt collision not reported", err)
	}
	if err := receipts.AddTransaction(TransactionData{}, -3); !errors.Is(err, ErrNegativePosition) {
		Fail(t, "negative transaction position accepted", err)
	}
}

func TestZeroValueRequest(t *testing.T) {
	t.Parallel()
	var req ProofRequest
	if req.NumStorage() != 0 || len(req.ToJson().Storage) != 0 {
		Fail(t, "zero request is not empty")
	}
	series := randomSeries(2, 10)
	Require(t, Assemble(&req, series))
	receipt := ReceiptData{TxHash: testhelpers.RandomHash()}
	Require(t, req.AddReceipt(receipt, 0))
	tx := TransactionData{Hash: testhelpers.RandomHash()}
	Require(t, req.AddTransaction(tx, 0))
	Require(t, req.CheckContiguous())
	if diff := cmp.Diff(series, req.Storage()); diff != "" {
		Fail(t, "storage differs", diff)
	}
	if diff := cmp.Diff([]ReceiptData{receipt}, req.Receipts()); diff != "" {
		Fail(t, "receipts differ", diff)
	}
	if diff := cmp.Diff([]TransactionData{tx}, req.Transactions()); diff != "" {
		Fail(t, "transactions differ", diff)
	}
	if err := req.AddTransaction(tx, 0); !errors.Is(err, ErrPositionTaken) {
		Fail(t, "collision on lazily created map not reported", err)
	}
}

func TestProofRequestJsonRoundTrip(t *testing.T) {
	t.Parallel()
	series := randomSeries(5, 1000)
	series[2].Slot = testhelpers.RandomHash()
	req := NewProofRequest()
	Require(t, Assemble(req, series))
	receipt := ReceiptData{
		TxHash: testhelpers.RandomHash(),
		Fields: []LogFieldData{
			{LogPos: 0, IsTopic: true, FieldIndex: 1},
			{LogPos: 0, IsTopic: false, FieldIndex: 0, Value: testhelpers.RandomHash()},
		},
	}
	Require(t, req.AddReceipt(receipt, 0))
	tx := TransactionData{Hash: testhelpers.RandomHash()}
	Require(t, req.AddTransaction(tx, 0))

	serialized, err := json.Marshal(req.ToJson())
	Require(t, err)
	var decoded ProofRequestJson
	Require(t, json.Unmarshal(serialized, &decoded))
	back, err := ProofRequestFromJson(&decoded)
	Require(t, err)

	if diff := cmp.Diff(series, back.Storage()); diff != "" {
		Fail(t, "storage changed across round trip", diff)
	}
	if diff := cmp.Diff([]ReceiptData{receipt}, back.Receipts()); diff != "" {
		Fail(t, "receipts changed across round trip", diff)
	}
	if diff := cmp.Diff([]TransactionData{tx}, back.Transactions()); diff != "" {
		Fail(t, "transactions changed across round trip", diff)
	}
}

func TestProofRequestFromJsonRejectsCollisions(t *testing.T) {
	t.Parallel()
	entry := &ProofRequestJson{
		Storage: []StorageDataJson{{Index: 0}, {Index: 0}},
	}
	if _, err := ProofRequestFromJson(entry); !errors.Is(err, ErrPositionTaken) {
		Fail(t, "duplicate index accepted", err)
	}
}

func TestStorageJsonFormat(t *testing.T) {
	t.Parallel()
	req := NewProofRequest()
	Require(t, req.AddStorage(observation.Observation{
		BlockNumber: 19308799,
		Address:     common.HexToAddress("0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"),
	}, 0))
	serialized, err := json.Marshal(req.ToJson())
	Require(t, err)
	expected := `{"storage":[{"index":0,"block_num":"0x1269fff",` +
		`"address":"0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",` +
		`"slot":"0x0000000000000000000000000000000000000000000000000000000000000000",` +
		`"value":"0x0000000000000000000000000000000000000000000000000000000000000000"}]}`
	if string(serialized) != expected {
		Fail(t, "unexpected wire format", string(serialized))
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
