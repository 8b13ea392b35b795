// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package jsonapi

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Uint64String is a uint64 that marshals as a decimal string, so JSON
// consumers that parse numbers as doubles do not lose precision. A bare JSON
// number is accepted when unmarshaling.
type Uint64String uint64

func (u *Uint64String) UnmarshalJSON(b []byte) error {
	jsonString := string(b)
	if jsonString == "null" {
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = jsonString
	}
	value, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 %s: %w", jsonString, err)
	}
	*u = Uint64String(value)
	return nil
}

func (u Uint64String) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%d\"", uint64(u))), nil
}
