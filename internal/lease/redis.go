package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 只有持有者才能删除锁，避免删除其他实例重新获取的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease 用 redis 保证多个实例之间同一个任务同时只运行一次
type RedisLease struct {
	rdb       *redis.Client
	owner     string
	ttl       time.Duration
	opTimeout time.Duration
}

func NewRedisLease(rdb *redis.Client, ttl, opTimeout time.Duration) *RedisLease {
	return &RedisLease{
		rdb:       rdb,
		owner:     uuid.NewString(),
		ttl:       ttl,
		opTimeout: opTimeout,
	}
}

func Key(jobID string) string {
	return fmt.Sprintf("task_lock_%s", jobID)
}

func (l *RedisLease) Acquire(jobID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.opTimeout)
	defer cancel()

	return l.rdb.SetNX(ctx, Key(jobID), l.owner, l.ttl).Result()
}

func (l *RedisLease) Release(jobID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.opTimeout)
	defer cancel()

	return releaseScript.Run(ctx, l.rdb, []string{Key(jobID)}, l.owner).Err()
}
