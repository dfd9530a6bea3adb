package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// DefaultChannel is the Redis channel shared by all instances.
const DefaultChannel = "deepresearch:events"

const (
	publishQueueSize = 1024
	publishTimeout   = 2 * time.Second
)

// envelope carries either a thread event or, when ApprovalID is set, an
// approval decision.
type envelope struct {
	Origin     string          `json:"origin"`
	ThreadID   string          `json:"thread_id,omitempty"`
	ApprovalID string          `json:"approval_id,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// RedisRelay publishes events to local watchers and, through Redis
// pub/sub, to the watchers connected to other instances. Approval
// decisions travel on the same channel. Publishing happens on the Run
// goroutine so callers never wait on Redis.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	queue   chan []byte

	mu         sync.RWMutex
	onDecision func(approvalID string, data []byte)
}

// NewRedisClient connects to a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisRelay creates a relay for h. An empty channel uses DefaultChannel.
func NewRedisRelay(client *redis.Client, h *Hub, channel string) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{
		client:  client,
		hub:     h,
		channel: channel,
		origin:  uuid.New().String(),
		queue:   make(chan []byte, publishQueueSize),
	}
}

// Broadcast delivers data to the local watchers of threadID right away and
// queues it for the other instances.
func (r *RedisRelay) Broadcast(threadID string, data []byte) {
	r.hub.Broadcast(threadID, data)
	r.enqueue(envelope{Origin: r.origin, ThreadID: threadID, Data: data})
}

// PublishDecision queues an approval decision for the other instances.
func (r *RedisRelay) PublishDecision(approvalID string, data []byte) {
	r.enqueue(envelope{Origin: r.origin, ApprovalID: approvalID, Data: data})
}

// OnDecision sets the handler of decisions published by other instances.
func (r *RedisRelay) OnDecision(fn func(approvalID string, data []byte)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDecision = fn
}

func (r *RedisRelay) enqueue(env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Warnf("failed to encode relayed message: %v", err)
		return
	}
	select {
	case r.queue <- payload:
	default:
		log.Warnf("relay queue full, dropping message for thread %q approval %q", env.ThreadID, env.ApprovalID)
	}
}

// Run publishes queued messages and forwards the messages of other
// instances until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	go r.publishLoop(ctx)

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	log.Infof("Relaying events through redis channel %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-r.queue:
			pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
			if err := r.client.Publish(pubCtx, r.channel, payload).Err(); err != nil {
				log.Warnf("failed to publish to %s: %v", r.channel, err)
			}
			cancel()
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warnf("dropping malformed relayed event: %v", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	if env.ApprovalID != "" {
		r.mu.RLock()
		fn := r.onDecision
		r.mu.RUnlock()
		if fn != nil {
			fn(env.ApprovalID, env.Data)
		}
		return
	}
	if env.ThreadID == "" {
		return
	}
	r.hub.Broadcast(env.ThreadID, env.Data)
}
