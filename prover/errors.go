// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"errors"
	"fmt"
)

// ErrCode is the prover's in-band error classification.
type ErrCode int

const (
	ErrCodeUndefined ErrCode = iota
	ErrCodeInvalidInput
	ErrCodeInvalidCustomInput
	ErrCodeFailedToProve
)

func (c ErrCode) String() string {
	switch c {
	case ErrCodeInvalidInput:
		return "ERROR_INVALID_INPUT"
	case ErrCodeInvalidCustomInput:
		return "ERROR_INVALID_CUSTOM_INPUT"
	case ErrCodeFailedToProve:
		return "ERROR_FAILED_TO_PROVE"
	default:
		return "ERROR_UNDEFINED"
	}
}

var (
	ErrInvalidInput       = &ProveError{Code: ErrCodeInvalidInput}
	ErrInvalidCustomInput = &ProveError{Code: ErrCodeInvalidCustomInput}
	ErrFailedToProve      = &ProveError{Code: ErrCodeFailedToProve}
)

// ProveError is a failure the prover reported about the request itself.
type ProveError struct {
	Code ErrCode
	Msg  string
}

func (e *ProveError) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%v: %s", e.Code, e.Msg)
}

// Is matches any ProveError with the same code, so the package sentinels
// work with errors.Is whatever the message.
func (e *ProveError) Is(target error) bool {
	var other *ProveError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// TransportError means the prover could not be reached or answered with
// something that is not a prove response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("prover transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Kind int

const (
	KindInvalidInput Kind = iota
	KindInvalidCustomInput
	KindFailedToProve
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid-input"
	case KindInvalidCustomInput:
		return "invalid-custom-input"
	case KindFailedToProve:
		return "failed-to-prove"
	default:
		return "transport"
	}
}

// KindOf classifies an error returned by a Prover. A ProveError without a
// recognized code counts as a failed proof; anything unclassified counts as
// a transport failure.
func KindOf(err error) Kind {
	var proveErr *ProveError
	if errors.As(err, &proveErr) {
		switch proveErr.Code {
		case ErrCodeInvalidInput:
			return KindInvalidInput
		case ErrCodeInvalidCustomInput:
			return KindInvalidCustomInput
		default:
			return KindFailedToProve
		}
	}
	return KindTransport
}
