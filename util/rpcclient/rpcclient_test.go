// Copyright 2021-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package rpcclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/histproof/histproof/util/testhelpers"
)

func TestLogArgs(t *testing.T) {
	t.Parallel()

	str := logArgs(0, 1, 2, 3, "hello, world")
	if str != `[1, 2, 3, "hello, world"]` {
		Fail(t, "unexpected logs limit 0 got:", str)
	}

	str = logArgs(100, 1, 2, 3, "hello, world")
	if str != `[1, 2, 3, "hello, world"]` {
		Fail(t, "unexpected logs limit 100 got:", str)
	}

	str = logArgs(4, 1, 2, 3, "hello, world")
	if str != `[1, 2, 3, ".."]` {
		Fail(t, "unexpected logs limit 4 got:", str)
	}
}

type testAPI struct {
	stuckCalls  int64
	failedCalls int64
}

func (t *testAPI) StuckAtFirst(ctx context.Context) error {
	stuckRemaining := atomic.AddInt64(&t.stuckCalls, -1) + 1
	if stuckRemaining <= 0 {
		return nil
	}
	<-ctx.Done()
	return errors.New("error")
}

func (t *testAPI) FailAtFirst(ctx context.Context) error {
	failedRemaining := atomic.AddInt64(&t.failedCalls, -1) + 1
	if failedRemaining <= 0 {
		return nil
	}
	return errors.New("error")
}

func (t *testAPI) Echo(value uint64) uint64 {
	return value
}

func createTestServer(t *testing.T, stuckOrFailed int64) string {
	t.Helper()
	server := rpc.NewServer()
	err := server.RegisterName("test", &testAPI{stuckOrFailed, stuckOrFailed})
	Require(t, err)
	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})
	return httpServer.URL
}

func TestRpcClientRetry(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
	defer cancel()

	newClient := func(url string) *RpcClient {
		config := &ClientConfig{
			URL:     url,
			Timeout: time.Second,
			Retries: 2,
		}
		client := NewRpcClient(func() *ClientConfig { return config })
		Require(t, client.Start(ctx))
		t.Cleanup(client.Close)
		return client
	}

	clientGood := newClient(createTestServer(t, 0))
	err := clientGood.CallContext(ctx, nil, "test_failAtFirst")
	Require(t, err)
	err = clientGood.CallContext(ctx, nil, "test_stuckAtFirst")
	Require(t, err)

	clientBad := newClient(createTestServer(t, 1000))
	err = clientBad.CallContext(ctx, nil, "test_failAtFirst")
	if err == nil {
		Fail(t, "no error for failAtFirst")
	}
	err = clientBad.CallContext(ctx, nil, "test_stuckAtFirst")
	if err == nil {
		Fail(t, "no error for stuckAtFirst")
	}

	clientRetry := newClient(createTestServer(t, 1))
	err = clientRetry.CallContext(ctx, nil, "test_failAtFirst")
	if err == nil {
		Fail(t, "no error for failAtFirst")
	}
	err = clientRetry.CallContext(ctx, nil, "test_stuckAtFirst")
	Require(t, err)
}

func TestRpcClientRetryErrors(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	config := &ClientConfig{
		URL:         createTestServer(t, 1),
		Timeout:     time.Second,
		Retries:     1,
		RetryErrors: "^error$",
	}
	client := NewRpcClient(func() *ClientConfig { return config })
	Require(t, client.Start(ctx))
	defer client.Close()

	Require(t, client.CallContext(ctx, nil, "test_failAtFirst"))

	var echoed uint64
	Require(t, client.CallContext(ctx, &echoed, "test_echo", uint64(42)))
	if echoed != 42 {
		Fail(t, "unexpected echo", echoed)
	}
}

func TestRpcClientRetryDelay(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	config := &ClientConfig{
		URL:         createTestServer(t, 2),
		Timeout:     time.Second,
		Retries:     2,
		RetryErrors: "^error$",
		RetryDelay:  50 * time.Millisecond,
	}
	client := NewRpcClient(func() *ClientConfig { return config })
	Require(t, client.Start(ctx))
	defer client.Close()

	start := time.Now()
	Require(t, client.CallContext(ctx, nil, "test_failAtFirst"))
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		Fail(t, "two retries finished in", elapsed)
	}

	cancelled, cancelNow := context.WithCancel(ctx)
	cancelNow()
	if err := client.CallContext(cancelled, nil, "test_echo", 1); !errors.Is(err, context.Canceled) {
		Fail(t, "call ran with a cancelled context", err)
	}
}

func TestRpcClientCallOnce(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	config := &ClientConfig{
		URL:         createTestServer(t, 1),
		Timeout:     time.Second,
		Retries:     2,
		RetryErrors: "^error$",
	}
	client := NewRpcClient(func() *ClientConfig { return config })
	Require(t, client.Start(ctx))
	defer client.Close()

	if err := client.CallOnce(ctx, nil, "test_failAtFirst"); err == nil {
		Fail(t, "CallOnce retried a failed call")
	}
	Require(t, client.CallOnce(ctx, nil, "test_failAtFirst"))
}

func TestRpcClientNotConnected(t *testing.T) {
	t.Parallel()
	client := NewRpcClient(func() *ClientConfig { return &TestClientConfig })
	if err := client.CallContext(context.Background(), nil, "test_echo", 1); err == nil {
		Fail(t, "call succeeded without a connection")
	}
	if err := client.Start(context.Background()); err == nil {
		Fail(t, "start succeeded without a url")
	}
}

func TestLoadJWTSecret(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	good := filepath.Join(dir, "good")
	Require(t, os.WriteFile(good, []byte("0x0102030405060708091011121314151617181920212223242526272829303132\n"), 0600))
	secret, err := loadJWTSecret(good)
	Require(t, err)
	if secret[0] != 0x01 || secret[31] != 0x32 {
		Fail(t, "unexpected secret", secret)
	}

	short := filepath.Join(dir, "short")
	Require(t, os.WriteFile(short, []byte("0x0102"), 0600))
	if _, err := loadJWTSecret(short); err == nil {
		Fail(t, "short secret accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	config := DefaultClientConfig
	if err := config.Validate(); err == nil {
		Fail(t, "empty url accepted")
	}
	config.URL = "http://localhost:8545"
	config.RetryErrors = "("
	if err := config.Validate(); err == nil {
		Fail(t, "invalid regexp accepted")
	}
	config.RetryErrors = ""
	Require(t, config.Validate())
}

func Require(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, printables...)
}

func Fail(t *testing.T, printables ...interface{}) {
	t.Helper()
	testhelpers.FailImpl(t, printables...)
}
