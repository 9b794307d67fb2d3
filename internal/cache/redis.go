package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-pipeline/internal/models"
)

const (
	leaderKey        = "pipeline:leader"
	onlineSetKey     = "presence:online"
	broadcastChannel = "broadcast"
)

// Store is the cache/lock-service surface the pipeline depends on. All of
// it is best effort except the leadership lock, which is the one primitive
// correctness leans on.
type Store interface {
	PushRoomMessage(ctx context.Context, msg models.ChatMessage) error
	RecentMessages(ctx context.Context, roomKey string, limit int) ([]models.ChatMessage, error)

	EnqueuePending(ctx context.Context, msg models.ChatMessage) error
	PeekPending(ctx context.Context, max int) ([]models.ChatMessage, error)
	RemovePending(ctx context.Context, n int) error
	PendingDepth(ctx context.Context) (int64, error)

	AcquireLeadership(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	RenewLeadership(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	ReleaseLeadership(ctx context.Context, owner string) error

	MarkOnline(ctx context.Context, userID int64) error
	ClearOnline(ctx context.Context, userID int64) error
	OnlineUserIDs(ctx context.Context) ([]int64, error)

	PublishBroadcast(ctx context.Context, payload []byte) error
	SubscribeBroadcasts(ctx context.Context, fn func(payload []byte)) error

	Ping(ctx context.Context) error
	Close() error
}

// RedisStore backs Store with a single Redis client.
type RedisStore struct {
	client     *redis.Client
	deployment string
	cacheCap   int
	cacheTTL   time.Duration
}

// NewRedisStore creates a Redis store for one deployment.
func NewRedisStore(ctx context.Context, redisURL, deployment string, cacheCap int, cacheTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	// A down cache service is a degradation, not a startup failure: the
	// client reconnects on its own once Redis is back.
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("cache unreachable at startup, continuing degraded: %v", err)
	}

	return &RedisStore{
		client:     client,
		deployment: deployment,
		cacheCap:   cacheCap,
		cacheTTL:   cacheTTL,
	}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomRecentKey returns the key for a room's recent-message list.
func roomRecentKey(roomKey string) string {
	return fmt.Sprintf("room:%s:recent", roomKey)
}

// pendingKey returns the batch-queue key for a deployment.
func pendingKey(deployment string) string {
	return fmt.Sprintf("pipeline:pending:%s", deployment)
}

// PushRoomMessage prepends a message to its room's recent list, trims the
// list to the configured cap and resets the TTL. Re-pushing the same
// message replaces nothing but costs one duplicate list entry until the
// list is trimmed, which readers tolerate.
func (s *RedisStore) PushRoomMessage(ctx context.Context, msg models.ChatMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomRecentKey(msg.RoomKey())
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, body)
	pipe.LTrim(ctx, key, 0, int64(s.cacheCap-1))
	pipe.Expire(ctx, key, s.cacheTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// RecentMessages returns up to limit cached messages, most recent first.
func (s *RedisStore) RecentMessages(ctx context.Context, roomKey string, limit int) ([]models.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, roomRecentKey(roomKey), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// EnqueuePending appends a message to the batch-write queue.
func (s *RedisStore) EnqueuePending(ctx context.Context, msg models.ChatMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, pendingKey(s.deployment), body).Err()
}

// PeekPending reads up to max queued messages without removing them.
func (s *RedisStore) PeekPending(ctx context.Context, max int) ([]models.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, pendingKey(s.deployment), 0, int64(max-1)).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// RemovePending drops the n oldest queued entries. Called only after the
// bulk write covering them was acknowledged.
func (s *RedisStore) RemovePending(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	return s.client.LPopCount(ctx, pendingKey(s.deployment), n).Err()
}

// PendingDepth reports how many entries await durable write.
func (s *RedisStore) PendingDepth(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, pendingKey(s.deployment)).Result()
}

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// AcquireLeadership tries to claim the global leader lock. A single
// non-blocking attempt: losers return false immediately.
func (s *RedisStore) AcquireLeadership(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, leaderKey, owner, ttl).Result()
}

// RenewLeadership extends the lock TTL only if owner still holds it.
// Returns false when the lock expired or was claimed by someone else.
func (s *RedisStore) RenewLeadership(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	res, err := renewScript.Run(ctx, s.client, []string{leaderKey}, owner, strconv.FormatInt(ttl.Milliseconds(), 10)).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// ReleaseLeadership deletes the lock only if owner still holds it.
func (s *RedisStore) ReleaseLeadership(ctx context.Context, owner string) error {
	return releaseScript.Run(ctx, s.client, []string{leaderKey}, owner).Err()
}

// MarkOnline records a user as believed online.
func (s *RedisStore) MarkOnline(ctx context.Context, userID int64) error {
	return s.client.SAdd(ctx, onlineSetKey, userID).Err()
}

// ClearOnline removes the online mark for a user.
func (s *RedisStore) ClearOnline(ctx context.Context, userID int64) error {
	return s.client.SRem(ctx, onlineSetKey, userID).Err()
}

// OnlineUserIDs lists every user currently marked online.
func (s *RedisStore) OnlineUserIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PublishBroadcast fans a websocket event out to every instance.
func (s *RedisStore) PublishBroadcast(ctx context.Context, payload []byte) error {
	return s.client.Publish(ctx, broadcastChannel, payload).Err()
}

// SubscribeBroadcasts invokes fn for every broadcast published by any
// instance, including this one. Blocks until ctx is done.
func (s *RedisStore) SubscribeBroadcasts(ctx context.Context, fn func(payload []byte)) error {
	sub := s.client.Subscribe(ctx, broadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn([]byte(msg.Payload))
		}
	}
}

var _ Store = (*RedisStore)(nil)
