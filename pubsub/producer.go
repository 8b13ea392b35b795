// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/log"
)

type ProducerConfig struct {
	// Interval duration for checking the result set by consumers.
	CheckResultInterval time.Duration `koanf:"check-result-interval"`
	// Maximum time a request may stay unanswered (0 = until the context ends).
	RequestTimeout time.Duration `koanf:"request-timeout"`
}

var DefaultProducerConfig = ProducerConfig{
	CheckResultInterval: 5 * time.Second,
	RequestTimeout:      time.Hour,
}

var TestProducerConfig = ProducerConfig{
	CheckResultInterval: 5 * time.Millisecond,
	RequestTimeout:      time.Minute,
}

func ProducerAddConfigAddOptions(prefix string, f *pflag.FlagSet) {
	f.Duration(prefix+".check-result-interval", DefaultProducerConfig.CheckResultInterval, "interval in which producer checks whether a consumer answered the request")
	f.Duration(prefix+".request-timeout", DefaultProducerConfig.RequestTimeout, "maximum time to wait for a consumer to answer a request (0 = no limit)")
}

type Producer[Request any, Response any] struct {
	client      redis.UniversalClient
	redisStream string
	cfg         *ProducerConfig

	// The consumer group is created before the first request, otherwise
	// a group created later at "$" would never see it.
	streamReady atomic.Bool
}

func NewProducer[Request any, Response any](client redis.UniversalClient, streamName string, cfg *ProducerConfig) (*Producer[Request, Response], error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if streamName == "" {
		return nil, fmt.Errorf("stream name cannot be empty")
	}
	if cfg.CheckResultInterval <= 0 {
		return nil, fmt.Errorf("check-result-interval must be positive, got %v", cfg.CheckResultInterval)
	}
	return &Producer[Request, Response]{
		client:      client,
		redisStream: streamName,
		cfg:         cfg,
	}, nil
}

// Request publishes value and blocks until a consumer answers it. An empty id
// is replaced by a fresh uuid.
func (p *Producer[Request, Response]) Request(ctx context.Context, id string, value Request) (Response, error) {
	var zero Response
	if id == "" {
		id = uuid.NewString()
	}
	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}
	if !p.streamReady.Load() {
		if err := CreateStream(ctx, p.redisStream, p.client); err != nil {
			return zero, fmt.Errorf("creating stream %s: %w", p.redisStream, err)
		}
		p.streamReady.Store(true)
	}
	val, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("marshaling value: %w", err)
	}
	msgId, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.redisStream,
		Values: map[string]any{messageKey: val, requestIDKey: id},
	}).Result()
	if err != nil {
		return zero, fmt.Errorf("adding values to redis: %w", err)
	}
	log.Debug("Redis stream producing", "stream", p.redisStream, "id", id, "msgId", msgId)

	ticker := time.NewTicker(p.cfg.CheckResultInterval)
	defer ticker.Stop()
	for {
		resp, done, err := p.checkResponse(ctx, id)
		if done {
			return resp, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Producer[Request, Response]) checkResponse(ctx context.Context, id string) (Response, bool, error) {
	var resp Response
	resultKey := ResultKeyFor(p.redisStream, id)
	res, err := p.client.Get(ctx, resultKey).Result()
	if err == nil {
		p.cleanup(ctx, resultKey)
		if err := json.Unmarshal([]byte(res), &resp); err != nil {
			log.Error("Error unmarshaling", "value", res, "error", err)
			return resp, true, fmt.Errorf("error unmarshalling: %w", err)
		}
		return resp, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		log.Error("Error reading value in redis", "key", resultKey, "error", err)
		return resp, false, nil
	}
	errorKey := ErrorKeyFor(p.redisStream, id)
	msg, err := p.client.Get(ctx, errorKey).Result()
	if err == nil {
		p.cleanup(ctx, errorKey)
		return resp, true, &RemoteError{Msg: msg}
	}
	if !errors.Is(err, redis.Nil) {
		log.Error("Error reading value in redis", "key", errorKey, "error", err)
	}
	return resp, false, nil
}

func (p *Producer[Request, Response]) cleanup(ctx context.Context, key string) {
	if err := p.client.Del(ctx, key).Err(); err != nil {
		log.Warn("Error deleting answered request key from redis", "key", key, "err", err)
	}
}
