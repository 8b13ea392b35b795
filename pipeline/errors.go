// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package pipeline

import (
	"errors"
	"fmt"

	"github.com/histproof/histproof/gateway"
	"github.com/histproof/histproof/prover"
)

type Kind int

const (
	KindInput Kind = iota
	KindRead
	KindProof
	KindSubmission
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindRead:
		return "read"
	case KindProof:
		return "proof"
	case KindSubmission:
		return "submission"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrEmptyIdentifier = errors.New("empty transaction hash")
	ErrBadIdentifier   = errors.New("identifier is not a 32-byte transaction hash")
)

// Error tags a failure with the stage that produced it.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError is returned when the query settled in a state other than
// complete.
type StatusError struct {
	Status gateway.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("query ended with status %v", e.Status)
}

const (
	ExitOK = iota
	_
	ExitInput
	ExitRead
	ExitInvalidInput
	ExitInvalidCustomInput
	ExitFailedToProve
	ExitProverTransport
	ExitSubmission
	ExitTerminalStatus
)

// ExitCode maps the outcome of a run to a process exit code. Unrecognized
// errors map to 1.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var pipelineErr *Error
	if !errors.As(err, &pipelineErr) {
		return 1
	}
	switch pipelineErr.Kind {
	case KindInput:
		return ExitInput
	case KindRead:
		return ExitRead
	case KindProof:
		switch prover.KindOf(pipelineErr.Err) {
		case prover.KindInvalidInput:
			return ExitInvalidInput
		case prover.KindInvalidCustomInput:
			return ExitInvalidCustomInput
		case prover.KindFailedToProve:
			return ExitFailedToProve
		default:
			return ExitProverTransport
		}
	case KindSubmission:
		var statusErr *StatusError
		if errors.As(pipelineErr.Err, &statusErr) {
			return ExitTerminalStatus
		}
		return ExitSubmission
	default:
		return 1
	}
}
