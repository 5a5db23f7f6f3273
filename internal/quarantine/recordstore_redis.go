package quarantine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xaoc-labs/modcore/internal/core"
)

const redisKeyPrefix = "modcore:containment:"

// RedisRecordStore keeps containment records in Redis so privilege
// snapshots survive a process restart. Opt-in; the core still makes no
// durability promise and everything else stays in memory.
type RedisRecordStore struct {
	rdb *redis.Client
}

// NewRedisRecordStore connects to Redis and verifies connectivity. The
// caller decides whether to fall back to the in-memory store on error.
func NewRedisRecordStore(addr, password string, db int) (*RedisRecordStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}

	return &RedisRecordStore{rdb: rdb}, nil
}

// Close shuts down the underlying redis client.
func (s *RedisRecordStore) Close() error {
	return s.rdb.Close()
}

func redisKey(key core.Key) string {
	return redisKeyPrefix + key.CommunityID + ":" + key.UserID
}

func (s *RedisRecordStore) Put(ctx context.Context, key core.Key, privileges []string) error {
	if privileges == nil {
		privileges = []string{}
	}
	data, err := json.Marshal(privileges)
	if err != nil {
		return fmt.Errorf("marshal containment record: %w", err)
	}
	return s.rdb.Set(ctx, redisKey(key), data, 0).Err()
}

func (s *RedisRecordStore) Get(ctx context.Context, key core.Key) ([]string, bool, error) {
	data, err := s.rdb.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var privs []string
	if err := json.Unmarshal(data, &privs); err != nil {
		return nil, false, fmt.Errorf("unmarshal containment record: %w", err)
	}
	return privs, true, nil
}

func (s *RedisRecordStore) Delete(ctx context.Context, key core.Key) error {
	return s.rdb.Del(ctx, redisKey(key)).Err()
}

func (s *RedisRecordStore) List(ctx context.Context, communityID string) ([]string, error) {
	prefix := redisKeyPrefix + communityID + ":"
	var users []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		users = append(users, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
