// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package gateway

import "fmt"

type Status int

const (
	StatusUndefined Status = iota
	StatusWaitingForProof
	StatusProving
	StatusSubmitting
	StatusComplete
	StatusFailed
	StatusExpired
)

var statusNames = map[Status]string{
	StatusUndefined:       "QS_UNDEFINED",
	StatusWaitingForProof: "QS_WAITING_FOR_PROOF",
	StatusProving:         "QS_PROVING",
	StatusSubmitting:      "QS_SUBMITTING",
	StatusComplete:        "QS_COMPLETE",
	StatusFailed:          "QS_FAILED",
	StatusExpired:         "QS_EXPIRED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("QS_UNKNOWN(%d)", int(s))
}

// IsTerminal reports whether the query will not change status again.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusExpired
}

// Succeeded is true only for a finalized query.
func (s Status) Succeeded() bool {
	return s == StatusComplete
}

func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("unknown query status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown query status %q", string(text))
}
