package stockpile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisSnapshotStore keeps the snapshot as a single JSON value in Redis, for
// deployments where local disk does not survive a restart. SET is atomic, so
// the replace contract holds without a temp-file dance.
type RedisSnapshotStore struct {
	rdb *redis.Client

	key     string
	ttl     time.Duration
	timeout time.Duration
}

type RedisSnapshotOption func(*RedisSnapshotStore)

func WithSnapshotKey(key string) RedisSnapshotOption {
	return func(s *RedisSnapshotStore) { s.key = key }
}

// WithSnapshotTTL bounds how long a stale snapshot outlives its process. Zero
// means no expiry.
func WithSnapshotTTL(d time.Duration) RedisSnapshotOption {
	return func(s *RedisSnapshotStore) { s.ttl = d }
}

func WithSnapshotTimeout(d time.Duration) RedisSnapshotOption {
	return func(s *RedisSnapshotStore) { s.timeout = d }
}

func NewRedisSnapshotStore(rdb *redis.Client, opts ...RedisSnapshotOption) *RedisSnapshotStore {
	s := &RedisSnapshotStore{
		rdb:     rdb,
		key:     "stockpile:snapshot",
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (self *RedisSnapshotStore) Save(state *PoolState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}
	ctx, cancel := context.WithTimeout(context.Background(), self.timeout)
	defer cancel()
	if err := self.rdb.Set(ctx, self.key, data, self.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set [%s]", self.key)
	}
	return nil
}

func (self *RedisSnapshotStore) Load() (*PoolState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), self.timeout)
	defer cancel()
	data, err := self.rdb.Get(ctx, self.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "get [%s]", self.key)
	}
	state := &PoolState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrapf(err, "unmarshal [%s]", self.key)
	}
	return state, nil
}

var _ SnapshotStore = (*RedisSnapshotStore)(nil)
