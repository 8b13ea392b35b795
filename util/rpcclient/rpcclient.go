// Copyright 2021-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/rpc"
)

type ClientConfig struct {
	URL            string        `koanf:"url"`
	JWTSecret      string        `koanf:"jwtsecret"`
	Timeout        time.Duration `koanf:"timeout"`
	Retries        uint          `koanf:"retries"`
	ConnectionWait time.Duration `koanf:"connection-wait"`
	ArgLogLimit    uint          `koanf:"arg-log-limit"`
	RetryErrors    string        `koanf:"retry-errors"`
	RetryDelay     time.Duration `koanf:"retry-delay"`
}

type ClientConfigFetcher func() *ClientConfig

var TestClientConfig = ClientConfig{
	URL:         "",
	JWTSecret:   "",
	Timeout:     5 * time.Second,
	ArgLogLimit: 2048,
}

var DefaultClientConfig = ClientConfig{
	URL:         "",
	JWTSecret:   "",
	ArgLogLimit: 2048,
}

func (c *ClientConfig) Validate() error {
	if c.URL == "" {
		return errors.New("no url provided for this connection")
	}
	if c.RetryErrors != "" {
		if _, err := regexp.Compile(c.RetryErrors); err != nil {
			return fmt.Errorf("invalid retry-errors regexp: %w", err)
		}
	}
	return nil
}

func RPCClientAddOptions(prefix string, f *flag.FlagSet, defaultConfig *ClientConfig) {
	f.String(prefix+".url", defaultConfig.URL, "url of server")
	f.String(prefix+".jwtsecret", defaultConfig.JWTSecret, "path to file with jwtsecret used to authenticate against the server")
	f.Duration(prefix+".connection-wait", defaultConfig.ConnectionWait, "how long to wait for initial connection")
	f.Duration(prefix+".timeout", defaultConfig.Timeout, "per-response timeout (0-disabled)")
	f.Uint(prefix+".arg-log-limit", defaultConfig.ArgLogLimit, "limit size of arguments in log entries")
	f.Uint(prefix+".retries", defaultConfig.Retries, "number of retries in case of failure(0 mean one attempt)")
	f.String(prefix+".retry-errors", defaultConfig.RetryErrors, "Errors matching this regular expression are automatically retried")
	f.Duration(prefix+".retry-delay", defaultConfig.RetryDelay, "delay between retries of a failed call")
}

type RpcClient struct {
	config ClientConfigFetcher
	client *rpc.Client
	logId  uint64
}

func NewRpcClient(config ClientConfigFetcher) *RpcClient {
	return &RpcClient{
		config: config,
	}
}

func (c *RpcClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func limitString(limit int, str string) string {
	if limit == 0 || len(str) <= limit {
		return str
	}
	prefix := str[:limit/2-1]
	postfix := str[len(str)-limit/2+1:]
	return fmt.Sprintf("%v..%v", prefix, postfix)
}

func logArgs(limit int, args ...interface{}) string {
	res := "["
	for i, arg := range args {
		marshalled, err := json.Marshal(arg)
		if err != nil {
			res += "\"CANNOT MARSHALL:" + limitString(limit, err.Error()) + "\""
		} else {
			res += limitString(limit, string(marshalled))
		}
		if i < len(args)-1 {
			res += ", "
		}
	}
	res += "]"
	return res
}

func callMetrics(method string) (metrics.Counter, metrics.Counter) {
	return metrics.GetOrRegisterCounter("histproof/rpc/"+method+"/calls", nil),
		metrics.GetOrRegisterCounter("histproof/rpc/"+method+"/errors", nil)
}

// retryable reports whether another attempt may fix err, when attempts are
// left. Timeouts of a single attempt qualify; other errors only when they
// match RetryErrors.
func (c *RpcClient) retryable(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return true
	}
	pattern := c.config().RetryErrors
	if pattern == "" {
		return false
	}
	match, regexErr := regexp.MatchString(pattern, err.Error())
	if regexErr != nil {
		log.Warn("rpcclient: bad value for retry-errors, not retrying", "err", err, "value", pattern)
		return false
	}
	return match
}

// CallContext makes up to 1+Retries attempts. Only use it for calls that are
// safe to repeat.
func (c *RpcClient) CallContext(ctx_in context.Context, result interface{}, method string, args ...interface{}) error {
	return c.call(ctx_in, int(c.config().Retries), result, method, args...)
}

// CallOnce makes exactly one attempt whatever the retry config says. Use it
// for calls that must not be repeated, such as submissions.
func (c *RpcClient) CallOnce(ctx_in context.Context, result interface{}, method string, args ...interface{}) error {
	return c.call(ctx_in, 0, result, method, args...)
}

func (c *RpcClient) call(ctx_in context.Context, retries int, result interface{}, method string, args ...interface{}) error {
	if c.client == nil {
		return errors.New("not connected")
	}
	calls, failures := callMetrics(method)
	logId := atomic.AddUint64(&c.logId, 1)
	log.Trace("sending RPC request", "method", method, "logId", logId, "args", logArgs(int(c.config().ArgLogLimit), args...))
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 && c.config().RetryDelay > 0 {
			select {
			case <-ctx_in.Done():
				return ctx_in.Err()
			case <-time.After(c.config().RetryDelay):
			}
		}
		if ctx_in.Err() != nil {
			return ctx_in.Err()
		}
		ctx, cancelCtx := ctx_in, context.CancelFunc(func() {})
		if timeout := c.config().Timeout; timeout > 0 {
			ctx, cancelCtx = context.WithTimeout(ctx_in, timeout)
		}
		calls.Inc(1)
		err = c.client.CallContext(ctx, result, method, args...)
		cancelCtx()
		if err == nil {
			log.Trace("rpc response", "method", method, "logId", logId, "attempt", attempt, "result", limitString(int(c.config().ArgLogLimit), fmt.Sprintf("%+v", result)))
			return nil
		}
		failures.Inc(1)
		log.Info("rpc call failed", "method", method, "logId", logId, "attempt", attempt, "err", err, "args", logArgs(0, args...))
		if !c.retryable(ctx_in, err) {
			return err
		}
	}
	return err
}

func loadJWTSecret(path string) ([32]byte, error) {
	var secret [32]byte
	contents, err := os.ReadFile(path)
	if err != nil {
		return secret, fmt.Errorf("reading jwt secret: %w", err)
	}
	decoded, err := hexutil.Decode(strings.TrimSpace(string(contents)))
	if err != nil {
		return secret, fmt.Errorf("decoding jwt secret: %w", err)
	}
	if len(decoded) != common.HashLength {
		return secret, fmt.Errorf("jwt secret must be %d bytes, got %d", common.HashLength, len(decoded))
	}
	copy(secret[:], decoded)
	return secret, nil
}

func (c *RpcClient) Start(ctx_in context.Context) error {
	url := c.config().URL
	jwtPath := c.config().JWTSecret
	if url == "" {
		return errors.New("no url provided for this connection")
	}
	var jwt *[32]byte
	if jwtPath != "" {
		secret, err := loadJWTSecret(jwtPath)
		if err != nil {
			return err
		}
		jwt = &secret
	}
	connTimeout := time.After(c.config().ConnectionWait)
	for {
		var ctx context.Context
		var cancelCtx context.CancelFunc
		timeout := c.config().Timeout
		if timeout > 0 {
			ctx, cancelCtx = context.WithTimeout(ctx_in, timeout)
		} else {
			ctx, cancelCtx = context.WithCancel(ctx_in)
		}
		var err error
		var client *rpc.Client
		if jwt == nil {
			client, err = rpc.DialContext(ctx, url)
		} else {
			client, err = rpc.DialOptions(ctx, url, rpc.WithHTTPAuth(node.NewJWTAuth(*jwt)))
		}
		cancelCtx()
		if err == nil {
			c.client = client
			return nil
		}
		if strings.Contains(err.Error(), "parse") ||
			strings.Contains(err.Error(), "malformed") ||
			strings.Contains(err.Error(), "no known transport") {
			return fmt.Errorf("%w: url %s", err, url)
		}
		select {
		case <-connTimeout:
			return fmt.Errorf("timeout trying to connect lastError: %w", err)
		case <-ctx_in.Done():
			return ctx_in.Err()
		case <-time.After(time.Second):
		}
	}
}
