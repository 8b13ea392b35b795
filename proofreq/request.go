// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package proofreq holds the ordered bundle of evidence sent to a prover.
package proofreq

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/histproof/histproof/observation"
)

var (
	ErrPositionTaken    = errors.New("an element is already pinned at this position")
	ErrNegativePosition = errors.New("position cannot be negative")
	ErrNotContiguous    = errors.New("positions are not contiguous from zero")
)

type LogFieldData struct {
	Contract   common.Address
	EventID    common.Hash
	LogPos     uint
	IsTopic    bool
	FieldIndex uint
	Value      common.Hash
}

type ReceiptData struct {
	TxHash common.Hash
	Fields []LogFieldData
}

type TransactionData struct {
	Hash common.Hash
}

// ProofRequest pins each piece of evidence at a fixed position. The prover
// uses positions as circuit input indices, so collisions and gaps are caller
// errors. The zero value is an empty request ready for use.
type ProofRequest struct {
	storage      map[int]observation.Observation
	receipts     map[int]ReceiptData
	transactions map[int]TransactionData
}

func NewProofRequest() *ProofRequest {
	return &ProofRequest{
		storage:      make(map[int]observation.Observation),
		receipts:     make(map[int]ReceiptData),
		transactions: make(map[int]TransactionData),
	}
}

func pin[T any](slots *map[int]T, kind string, value T, pos int) error {
	if pos < 0 {
		return fmt.Errorf("%s %d: %w", kind, pos, ErrNegativePosition)
	}
	if *slots == nil {
		*slots = make(map[int]T)
	}
	if _, ok := (*slots)[pos]; ok {
		return fmt.Errorf("%s %d: %w", kind, pos, ErrPositionTaken)
	}
	(*slots)[pos] = value
	return nil
}

func positions[T any](slots map[int]T) []int {
	res := make([]int, 0, len(slots))
	for pos := range slots {
		res = append(res, pos)
	}
	sort.Ints(res)
	return res
}

func ordered[T any](slots map[int]T) []T {
	res := make([]T, 0, len(slots))
	for _, pos := range positions(slots) {
		res = append(res, slots[pos])
	}
	return res
}

func checkContiguous[T any](slots map[int]T, kind string) error {
	for i, pos := range positions(slots) {
		if pos != i {
			return fmt.Errorf("%s: %w: missing position %d", kind, ErrNotContiguous, i)
		}
	}
	return nil
}

func (r *ProofRequest) AddStorage(obs observation.Observation, pos int) error {
	return pin(&r.storage, "storage", obs, pos)
}

func (r *ProofRequest) AddReceipt(receipt ReceiptData, pos int) error {
	return pin(&r.receipts, "receipt", receipt, pos)
}

func (r *ProofRequest) AddTransaction(tx TransactionData, pos int) error {
	return pin(&r.transactions, "transaction", tx, pos)
}

func (r *ProofRequest) StorageAt(pos int) (observation.Observation, bool) {
	obs, ok := r.storage[pos]
	return obs, ok
}

func (r *ProofRequest) StoragePositions() []int {
	return positions(r.storage)
}

func (r *ProofRequest) NumStorage() int {
	return len(r.storage)
}

// Storage returns the storage evidence ordered by position.
func (r *ProofRequest) Storage() []observation.Observation {
	return ordered(r.storage)
}

func (r *ProofRequest) Receipts() []ReceiptData {
	return ordered(r.receipts)
}

func (r *ProofRequest) Transactions() []TransactionData {
	return ordered(r.transactions)
}

// CheckContiguous verifies that every evidence kind occupies positions 0..k-1.
func (r *ProofRequest) CheckContiguous() error {
	if err := checkContiguous(r.storage, "storage"); err != nil {
		return err
	}
	if err := checkContiguous(r.receipts, "receipt"); err != nil {
		return err
	}
	return checkContiguous(r.transactions, "transaction")
}

// Assemble pins series[i] at storage position i. It does not judge whether
// the evidence is useful to the target circuit.
func Assemble(req *ProofRequest, series []observation.Observation) error {
	for i, obs := range series {
		if err := req.AddStorage(obs, i); err != nil {
			return err
		}
	}
	return nil
}
