// Copyright 2021-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package redisutil

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/histproof/histproof/util/testhelpers"
	testflag "github.com/histproof/histproof/util/testhelpers/flag"
)

// CreateTestRedis Provides external redis url, this is only done when the
// test_redis flag or TEST_REDIS env is set, else creates a new miniredis and
// returns its url.
func CreateTestRedis(ctx context.Context, t *testing.T) string {
	if *testflag.RedisFlag != "" {
		return *testflag.RedisFlag
	}
	if redisUrl := os.Getenv("TEST_REDIS"); redisUrl != "" {
		return redisUrl
	}
	redisServer, err := miniredis.Run()
	testhelpers.RequireImpl(t, err)
	go func() {
		<-ctx.Done()
		redisServer.Close()
	}()

	return fmt.Sprintf("redis://%s/0", redisServer.Addr())
}
