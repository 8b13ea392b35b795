// Copyright 2024-2026, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ethereum/go-ethereum/log"

	"github.com/histproof/histproof/proofreq"
	"github.com/histproof/histproof/pubsub"
)

// RedisProver publishes prove requests on a Redis stream and waits for a
// worker to store the response.
type RedisProver struct {
	producer *pubsub.Producer[*proofreq.ProofRequestJson, *ProveResponse]
}

func NewRedisProver(client redis.UniversalClient, stream string, config *pubsub.ProducerConfig) (*RedisProver, error) {
	producer, err := pubsub.NewProducer[*proofreq.ProofRequestJson, *ProveResponse](client, stream, config)
	if err != nil {
		return nil, err
	}
	return &RedisProver{producer: producer}, nil
}

func (p *RedisProver) Prove(ctx context.Context, req *proofreq.ProofRequest) (*Proof, error) {
	defer proveTimer.UpdateSince(time.Now())
	resp, err := p.producer.Request(ctx, "", req.ToJson())
	if err != nil {
		err = &TransportError{Err: err}
		countResult(err)
		return nil, err
	}
	proof, err := ProofFromResponse(resp)
	countResult(err)
	return proof, err
}

// RedisWorker serves prove requests from a Redis stream with a backend
// Prover. Prove errors are answered in band; other backend failures are
// reported through the stream's error key.
type RedisWorker struct {
	consumer      *pubsub.Consumer[*proofreq.ProofRequestJson, *ProveResponse]
	api           *ServerAPI
	retryInterval time.Duration
}

func NewRedisWorker(ctx context.Context, client redis.UniversalClient, stream string, config *pubsub.ConsumerConfig, backend Prover) (*RedisWorker, error) {
	consumer, err := pubsub.NewConsumer[*proofreq.ProofRequestJson, *ProveResponse](ctx, client, stream, config)
	if err != nil {
		return nil, err
	}
	return &RedisWorker{
		consumer:      consumer,
		api:           NewServerAPI(backend),
		retryInterval: config.RetryInterval,
	}, nil
}

// Run serves requests until ctx is done. After a failed read it waits the
// configured retry interval before reading again.
func (w *RedisWorker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := w.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("consuming prove request", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryInterval):
			}
			continue
		}
		if msg == nil {
			continue
		}
		w.serve(ctx, msg)
	}
}

func (w *RedisWorker) serve(ctx context.Context, msg *pubsub.Message[*proofreq.ProofRequestJson]) {
	if msg.Value == nil {
		msg.Value = &proofreq.ProofRequestJson{}
	}
	resp, err := w.api.Prove(ctx, msg.Value)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		if setErr := w.consumer.SetError(ctx, msg.RequestID, msg.ID, err.Error()); setErr != nil {
			log.Error("reporting prove failure", "id", msg.RequestID, "err", setErr)
		}
		return
	}
	if err := w.consumer.SetResult(ctx, msg.RequestID, msg.ID, resp); err != nil {
		log.Error("storing prove response", "id", msg.RequestID, "err", err)
	}
}
