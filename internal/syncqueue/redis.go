package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStorage keeps the queue durable across restarts: a pending list, a
// delayed sorted set scored by retry instant, and a dead-letter list.
type RedisStorage struct {
	Client    *redis.Client
	Namespace string
}

func NewRedisStorage(client *redis.Client, namespace string) *RedisStorage {
	if namespace == "" {
		namespace = "chainsync"
	}
	return &RedisStorage{Client: client, Namespace: namespace}
}

func (s *RedisStorage) pendingKey() string { return s.Namespace + ":queue:pending" }
func (s *RedisStorage) delayedKey() string { return s.Namespace + ":queue:delayed" }
func (s *RedisStorage) deadKey() string    { return s.Namespace + ":queue:dead" }

func (s *RedisStorage) Push(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.Client.LPush(ctx, s.pendingKey(), raw).Err()
}

func (s *RedisStorage) PushDelayed(ctx context.Context, job *Job, at time.Time) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.Client.ZAdd(ctx, s.delayedKey(), &redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: raw,
	}).Err()
}

func (s *RedisStorage) Pop(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := s.Client.BRPop(ctx, timeout, s.pendingKey()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("corrupt job payload: %w", err)
	}
	return &job, nil
}

func (s *RedisStorage) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.Client.ZRangeByScore(ctx, s.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, member := range due {
		// ZREM first so two movers cannot promote the same job twice.
		removed, err := s.Client.ZRem(ctx, s.delayedKey(), member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := s.Client.LPush(ctx, s.pendingKey(), member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (s *RedisStorage) DeadLetter(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.Client.LPush(ctx, s.deadKey(), raw).Err()
}

func (s *RedisStorage) DeadLetters(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.Client.LRange(ctx, s.deadKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(entries))
	for _, entry := range entries {
		var job Job
		if err := json.Unmarshal([]byte(entry), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
