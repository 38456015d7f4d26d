package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"optionpulse/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a publish-only Redis list queue. Consumers live outside this
// process and drain the list with BRPOP.
type RedisQueue struct {
	logger    *logger.Logger
	client    *redis.Client
	mu        sync.RWMutex
	isRunning bool
	keyPrefix string
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	rq := &RedisQueue{
		logger:    lgr,
		client:    client,
		keyPrefix: "optionpulse:queue",
	}

	for _, opt := range opts {
		opt(rq)
	}

	return rq
}

// NewRedisPublisher creates and starts a publisher.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	q := NewRedisQueue(lgr, client, opts...)
	if err := q.Start(); err != nil {
		lgr.Error("redis publisher start failed", logger.Error(err))
	}
	return q
}

// Start verifies connectivity and marks the publisher ready.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	r.logger.Info("redis publisher started",
		logger.String("addr", r.client.Options().Addr))
	return nil
}

// Stop marks the publisher stopped; messages already pushed stay in Redis.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return nil
	}
	r.isRunning = false

	if depth, err := r.client.LLen(ctx, r.getQueueKey()).Result(); err == nil {
		r.logger.Info("redis publisher stopped",
			logger.Int64("pending", depth))
	} else {
		r.logger.Info("redis publisher stopped")
	}
	return nil
}

// Enqueue adds a message to the queue.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.isRunning {
		return fmt.Errorf("queue not running")
	}

	msg := Message{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
		Attempts:  0,
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := r.client.LPush(ctx, r.getQueueKey(), msgData).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}

	return nil
}

// PublishMessage publishes a message (implements QueueService).
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) getQueueKey() string {
	return r.keyPrefix + ":messages"
}
