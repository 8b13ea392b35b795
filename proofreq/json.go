// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package proofreq

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/histproof/histproof/observation"
)

type StorageDataJson struct {
	Index    int            `json:"index"`
	BlockNum hexutil.Uint64 `json:"block_num"`
	Address  common.Address `json:"address"`
	Slot     common.Hash    `json:"slot"`
	Value    common.Hash    `json:"value"`
}

type LogFieldJson struct {
	Contract   common.Address `json:"contract"`
	EventID    common.Hash    `json:"event_id"`
	LogPos     uint           `json:"log_pos"`
	IsTopic    bool           `json:"is_topic"`
	FieldIndex uint           `json:"field_index"`
	Value      common.Hash    `json:"value"`
}

type ReceiptDataJson struct {
	Index  int            `json:"index"`
	TxHash common.Hash    `json:"tx_hash"`
	Fields []LogFieldJson `json:"fields"`
}

type TransactionDataJson struct {
	Index int         `json:"index"`
	Hash  common.Hash `json:"hash"`
}

type ProofRequestJson struct {
	Storage      []StorageDataJson     `json:"storage"`
	Receipts     []ReceiptDataJson     `json:"receipts,omitempty"`
	Transactions []TransactionDataJson `json:"transactions,omitempty"`
}

func (r *ProofRequest) ToJson() *ProofRequestJson {
	res := &ProofRequestJson{
		Storage: make([]StorageDataJson, 0, len(r.storage)),
	}
	for _, pos := range positions(r.storage) {
		obs := r.storage[pos]
		res.Storage = append(res.Storage, StorageDataJson{
			Index:    pos,
			BlockNum: hexutil.Uint64(obs.BlockNumber),
			Address:  obs.Address,
			Slot:     obs.Slot,
			Value:    obs.Value,
		})
	}
	for _, pos := range positions(r.receipts) {
		receipt := r.receipts[pos]
		fields := make([]LogFieldJson, 0, len(receipt.Fields))
		for _, field := range receipt.Fields {
			fields = append(fields, LogFieldJson(field))
		}
		res.Receipts = append(res.Receipts, ReceiptDataJson{
			Index:  pos,
			TxHash: receipt.TxHash,
			Fields: fields,
		})
	}
	for _, pos := range positions(r.transactions) {
		res.Transactions = append(res.Transactions, TransactionDataJson{
			Index: pos,
			Hash:  r.transactions[pos].Hash,
		})
	}
	return res
}

func ProofRequestFromJson(entry *ProofRequestJson) (*ProofRequest, error) {
	req := NewProofRequest()
	for _, storage := range entry.Storage {
		obs := observation.Observation{
			BlockNumber: uint64(storage.BlockNum),
			Address:     storage.Address,
			Slot:        storage.Slot,
			Value:       storage.Value,
		}
		if err := req.AddStorage(obs, storage.Index); err != nil {
			return nil, err
		}
	}
	for _, receipt := range entry.Receipts {
		fields := make([]LogFieldData, 0, len(receipt.Fields))
		for _, field := range receipt.Fields {
			fields = append(fields, LogFieldData(field))
		}
		if err := req.AddReceipt(ReceiptData{TxHash: receipt.TxHash, Fields: fields}, receipt.Index); err != nil {
			return nil, err
		}
	}
	for _, tx := range entry.Transactions {
		if err := req.AddTransaction(TransactionData{Hash: tx.Hash}, tx.Index); err != nil {
			return nil, err
		}
	}
	return req, nil
}
