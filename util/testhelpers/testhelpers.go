// Copyright 2021-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package testhelpers

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"regexp"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/histproof/histproof/util/colors"
	testflag "github.com/histproof/histproof/util/testhelpers/flag"
)

// Fail a test should an error occur
func RequireImpl(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	if err != nil {
		t.Fatal(colors.Red, printables, err, colors.Clear)
	}
}

func FailImpl(t *testing.T, printables ...interface{}) {
	t.Helper()
	t.Fatal(colors.Red, printables, colors.Clear)
}

func RandomizeSlice(slice []byte) []byte {
	_, err := rand.Read(slice)
	if err != nil {
		panic(err)
	}
	return slice
}

func RandomHash() common.Hash {
	var hash common.Hash
	RandomizeSlice(hash[:])
	return hash
}

func RandomAddress() common.Address {
	var address common.Address
	RandomizeSlice(address[:])
	return address
}

// LogHandler records every log record it sees and forwards it to a terminal handler.
type LogHandler struct {
	mutex    sync.Mutex
	t        *testing.T
	records  []slog.Record
	terminal slog.Handler
}

func (h *LogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *LogHandler) Handle(ctx context.Context, record slog.Record) error {
	if err := h.terminal.Handle(ctx, record); err != nil {
		return err
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.records = append(h.records, record.Clone())
	return nil
}

func (h *LogHandler) WithAttrs([]slog.Attr) slog.Handler {
	return h
}

func (h *LogHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *LogHandler) WasLogged(pattern string) bool {
	re, err := regexp.Compile(pattern)
	RequireImpl(h.t, err)
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, record := range h.records {
		if re.MatchString(record.Message) {
			return true
		}
	}
	return false
}

// WasLoggedWith reports whether a record matching pattern carries every
// given attribute, compared by its printed value.
func (h *LogHandler) WasLoggedWith(pattern string, attrs map[string]string) bool {
	re, err := regexp.Compile(pattern)
	RequireImpl(h.t, err)
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, record := range h.records {
		if !re.MatchString(record.Message) {
			continue
		}
		matched := 0
		record.Attrs(func(attr slog.Attr) bool {
			if want, ok := attrs[attr.Key]; ok && attr.Value.String() == want {
				matched++
			}
			return true
		})
		if matched == len(attrs) {
			return true
		}
	}
	return false
}

// Records returns a copy of every recorded entry.
func (h *LogHandler) Records() []slog.Record {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]slog.Record(nil), h.records...)
}

// CountAtLeast returns how many recorded entries have at least the given level.
func (h *LogHandler) CountAtLeast(level slog.Level) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	count := 0
	for _, record := range h.records {
		if record.Level >= level {
			count++
		}
	}
	return count
}

func newLogHandler(t *testing.T) *LogHandler {
	return &LogHandler{
		t:        t,
		records:  make([]slog.Record, 0),
		terminal: log.NewTerminalHandler(os.Stderr, false),
	}
}

// InitTestLog installs a recording handler as the root logger. Tests using it
// must not run in parallel with other tests that inspect logs.
func InitTestLog(t *testing.T, level slog.Level) *LogHandler {
	handler := newLogHandler(t)
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(testLogLevel(t, level))
	log.SetDefault(log.NewLogger(glogger))
	return handler
}

func testLogLevel(t *testing.T, fallback slog.Level) slog.Level {
	if *testflag.LogLevelFlag == "" {
		return fallback
	}
	var level slog.Level
	RequireImpl(t, level.UnmarshalText([]byte(*testflag.LogLevelFlag)), "invalid test_loglevel")
	return level
}
