// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/log"
)

type ConsumerConfig struct {
	// Timeout of result entries written to redis by the consumer.
	ResponseEntryTimeout time.Duration `koanf:"response-entry-timeout"`
	// How long a single Consume call blocks waiting for a new message.
	ReadBlock time.Duration `koanf:"read-block"`
	// Pause before consuming again after a failed read.
	RetryInterval time.Duration `koanf:"retry-interval"`
}

var DefaultConsumerConfig = ConsumerConfig{
	ResponseEntryTimeout: time.Hour,
	ReadBlock:            time.Second,
	RetryInterval:        time.Second,
}

var TestConsumerConfig = ConsumerConfig{
	ResponseEntryTimeout: time.Minute,
	ReadBlock:            10 * time.Millisecond,
	RetryInterval:        10 * time.Millisecond,
}

func ConsumerConfigAddOptions(prefix string, f *pflag.FlagSet) {
	f.Duration(prefix+".response-entry-timeout", DefaultConsumerConfig.ResponseEntryTimeout, "timeout for the result entry written to redis")
	f.Duration(prefix+".read-block", DefaultConsumerConfig.ReadBlock, "how long a read waits for a new message on the stream")
	f.Duration(prefix+".retry-interval", DefaultConsumerConfig.RetryInterval, "pause before reading again after a failed read")
}

type Consumer[Request any, Response any] struct {
	id          string
	client      redis.UniversalClient
	redisStream string
	redisGroup  string
	cfg         *ConsumerConfig
}

type Message[Request any] struct {
	ID        string
	RequestID string
	Value     Request
}

func NewConsumer[Request any, Response any](ctx context.Context, client redis.UniversalClient, streamName string, cfg *ConsumerConfig) (*Consumer[Request, Response], error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if streamName == "" {
		return nil, fmt.Errorf("redis stream name cannot be empty")
	}
	if err := CreateStream(ctx, streamName, client); err != nil {
		return nil, fmt.Errorf("creating stream %s: %w", streamName, err)
	}
	return &Consumer[Request, Response]{
		id:          uuid.NewString(),
		client:      client,
		redisStream: streamName,
		redisGroup:  streamName, // There is 1-1 mapping of redis stream and consumer group.
		cfg:         cfg,
	}, nil
}

// Consume reads one message that was never delivered to another consumer.
// It returns nil when nothing arrived within the read block.
func (c *Consumer[Request, Response]) Consume(ctx context.Context) (*Message[Request], error) {
	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.redisGroup,
		Consumer: c.id,
		Streams:  []string{c.redisStream, ">"},
		Count:    1,
		Block:    c.cfg.ReadBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading message for consumer: %q: %w", c.id, err)
	}
	if len(res) != 1 || len(res[0].Messages) != 1 {
		return nil, fmt.Errorf("redis returned entries: %+v, for querying single message", res)
	}
	msg := res[0].Messages[0]
	requestID, _ := msg.Values[requestIDKey].(string)
	if requestID == "" {
		requestID = msg.ID
	}
	data, ok := msg.Values[messageKey].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no payload", msg.ID)
	}
	var req Request
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		// Answer so the producer does not wait until its timeout.
		if setErr := c.SetError(ctx, requestID, msg.ID, fmt.Sprintf("undecodable request: %v", err)); setErr != nil {
			log.Error("Error answering undecodable request", "id", requestID, "err", setErr)
		}
		return nil, fmt.Errorf("decoding message %s: %w", msg.ID, err)
	}
	log.Debug("Consumer consuming message", "consumer", c.id, "msgId", msg.ID, "id", requestID)
	return &Message[Request]{
		ID:        msg.ID,
		RequestID: requestID,
		Value:     req,
	}, nil
}

func (c *Consumer[Request, Response]) SetResult(ctx context.Context, requestID, messageID string, result Response) error {
	resp, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := c.client.Set(ctx, ResultKeyFor(c.redisStream, requestID), resp, c.cfg.ResponseEntryTimeout).Err(); err != nil {
		return fmt.Errorf("setting result for request: %v, error: %w", requestID, err)
	}
	return c.ack(ctx, messageID)
}

func (c *Consumer[Request, Response]) SetError(ctx context.Context, requestID, messageID string, msg string) error {
	if err := c.client.Set(ctx, ErrorKeyFor(c.redisStream, requestID), msg, c.cfg.ResponseEntryTimeout).Err(); err != nil {
		return fmt.Errorf("setting error for request: %v, error: %w", requestID, err)
	}
	return c.ack(ctx, messageID)
}

func (c *Consumer[Request, Response]) ack(ctx context.Context, messageID string) error {
	if _, err := c.client.XAck(ctx, c.redisStream, c.redisGroup, messageID).Result(); err != nil {
		return fmt.Errorf("acking message: %v, error: %w", messageID, err)
	}
	return nil
}
