// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package pubsub implements a request/response queue over Redis streams.
// A producer appends a request to the stream and polls a per-request result
// key; a consumer reads requests through a consumer group and writes either
// a result or an error key.
package pubsub

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ethereum/go-ethereum/log"
)

const (
	messageKey   = "msg"
	requestIDKey = "id"
)

// Keys never start with the stream name, so stream scrapers matching
// "streamname-*" do not pick them up.
func ResultKeyFor(streamName, id string) string {
	return fmt.Sprintf("result-key:%s.%s", streamName, id)
}

func ErrorKeyFor(streamName, id string) string {
	return fmt.Sprintf("error-key:%s.%s.error", streamName, id)
}

// RemoteError is reported by a consumer that could not serve a request.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string {
	return "consumer error: " + e.Msg
}

// CreateStream tries to create stream with given name, if it already exists
// does not return an error.
func CreateStream(ctx context.Context, streamName string, client redis.UniversalClient) error {
	_, err := client.XGroupCreateMkStream(ctx, streamName, streamName, "$").Result()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") && !StreamExists(ctx, streamName, client) {
		return err
	}
	return nil
}

// StreamExists returns whether there are any consumer group for specified
// redis stream.
func StreamExists(ctx context.Context, streamName string, client redis.UniversalClient) bool {
	got, err := client.Do(ctx, "XINFO", "STREAM", streamName).Result()
	if err != nil {
		if !strings.Contains(err.Error(), "no such key") {
			log.Error("redis error", "err", err, "searching stream", streamName)
		}
		return false
	}
	return got != nil
}
