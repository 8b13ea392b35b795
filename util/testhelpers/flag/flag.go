// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package testflag holds flags shared by every test package. Pass them after
// a "--" delimiter: go test ./... -- -test_redis=redis://localhost:6379/0
package testflag

import (
	"flag"
	"log"
	"os"
)

var (
	fs           = flag.NewFlagSet("test", flag.ExitOnError)
	RedisFlag    = fs.String("test_redis", "", "Redis URL for testing (defaults to an in-process miniredis)")
	LogLevelFlag  = fs.String("test_loglevel", "", "Log level for tests, overrides the level a test asks for")
)

// Flags can only be passed to the package that defines them, so everything
// after the "--" delimiter is parsed here instead.
func init() {
	var args []string
	foundDelimiter := false
	for _, arg := range os.Args {
		if foundDelimiter {
			args = append(args, arg)
		}
		if arg == "--" {
			foundDelimiter = true
		}
	}
	if err := fs.Parse(args); err != nil {
		log.Fatal(err)
	}
}
