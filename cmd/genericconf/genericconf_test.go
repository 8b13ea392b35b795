// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package genericconf

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"

	"github.com/histproof/histproof/util/testhelpers"
)

func TestToSlogLevel(t *testing.T) {
	for input, want := range map[string]int{
		"crit": int(log.LevelCrit), "ERROR": int(log.LevelError), "warn": int(log.LevelWarn),
		"info": int(log.LevelInfo), "4": int(log.LevelInfo), "debug": int(log.LevelDebug),
		"trace": int(log.LevelTrace),
	} {
		level, err := ToSlogLevel(input)
		testhelpers.RequireImpl(t, err)
		if int(level) != want {
			testhelpers.FailImpl(t, "level", input, "parsed as", level)
		}
	}
	if _, err := ToSlogLevel("loud"); err == nil {
		testhelpers.FailImpl(t, "unknown level accepted")
	}
}

func TestHandlerFromLogType(t *testing.T) {
	var buf bytes.Buffer
	handler, err := HandlerFromLogType("json", &buf)
	testhelpers.RequireImpl(t, err)
	log.NewLogger(handler).Info("proof received", "bytes", 42)
	if !strings.Contains(buf.String(), `"bytes":42`) {
		testhelpers.FailImpl(t, "unexpected json output", buf.String())
	}
	if _, err := HandlerFromLogType("xml", &buf); err == nil {
		testhelpers.FailImpl(t, "unknown log type accepted")
	}
}

func TestInitLogWritesFile(t *testing.T) {
	dir := t.TempDir()
	config := DefaultFileLoggingConfig
	config.Enable = true
	testhelpers.RequireImpl(t, config.Validate())
	testhelpers.RequireImpl(t, InitLog("json", "info", &config, DefaultPathResolver(dir)))
	log.Info("written to file", "marker", "abc123")
	testhelpers.RequireImpl(t, CloseLog())

	contents, err := os.ReadFile(filepath.Join(dir, config.File))
	testhelpers.RequireImpl(t, err)
	if !strings.Contains(string(contents), "abc123") {
		testhelpers.FailImpl(t, "log file missing record:", string(contents))
	}
	if err := InitLog("json", "nope", &DefaultFileLoggingConfig, DefaultPathResolver(dir)); err == nil {
		testhelpers.FailImpl(t, "bad level accepted")
	}
}

func TestDefaultPathResolver(t *testing.T) {
	resolve := DefaultPathResolver("/var/lib/histproof")
	if got := resolve("histproof.log"); got != "/var/lib/histproof/histproof.log" {
		testhelpers.FailImpl(t, "unexpected relative resolution", got)
	}
	if got := resolve("/tmp/x.log"); got != "/tmp/x.log" {
		testhelpers.FailImpl(t, "absolute path changed", got)
	}
}
