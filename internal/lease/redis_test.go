package lease

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func TestKey(t *testing.T) {
	require.Equal(t, "task_lock_0f8fad5b-d9cb-469f-a165-70867728950e", Key("0f8fad5b-d9cb-469f-a165-70867728950e"))
}

func TestAcquireIsExclusive(t *testing.T) {
	mr, rdb := newTestClient(t)

	a := NewRedisLease(rdb, time.Hour, time.Second)
	b := NewRedisLease(rdb, time.Hour, time.Second)
	require.NotEqual(t, a.owner, b.owner)

	ok, err := a.Acquire("job")
	require.NoError(t, err)
	require.True(t, ok)

	// 同一个实例也不能重复获取
	ok, err = a.Acquire("job")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = b.Acquire("job")
	require.NoError(t, err)
	require.False(t, ok)

	// 其他任务不受影响
	ok, err = b.Acquire("other")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := mr.Get(Key("job"))
	require.NoError(t, err)
	require.Equal(t, a.owner, got)
	require.Equal(t, time.Hour, mr.TTL(Key("job")))
}

func TestReleaseOnlyByOwner(t *testing.T) {
	mr, rdb := newTestClient(t)

	a := NewRedisLease(rdb, time.Hour, time.Second)
	b := NewRedisLease(rdb, time.Hour, time.Second)

	ok, err := a.Acquire("job")
	require.NoError(t, err)
	require.True(t, ok)

	// 不是持有者时释放不会删除锁
	require.NoError(t, b.Release("job"))
	require.True(t, mr.Exists(Key("job")))

	ok, err = b.Acquire("job")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Release("job"))
	require.False(t, mr.Exists(Key("job")))

	ok, err = b.Acquire("job")
	require.NoError(t, err)
	require.True(t, ok)

	// 旧的持有者再次释放时不能删除新持有者的锁
	require.NoError(t, a.Release("job"))
	require.True(t, mr.Exists(Key("job")))
}

func TestReleaseWithoutLock(t *testing.T) {
	_, rdb := newTestClient(t)

	l := NewRedisLease(rdb, time.Hour, time.Second)
	require.NoError(t, l.Release("missing"))
}

func TestLeaseExpires(t *testing.T) {
	mr, rdb := newTestClient(t)

	a := NewRedisLease(rdb, time.Minute, time.Second)
	b := NewRedisLease(rdb, time.Minute, time.Second)

	ok, err := a.Acquire("job")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = b.Acquire("job")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAcquireWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	l := NewRedisLease(rdb, time.Hour, 100*time.Millisecond)
	_, err = l.Acquire("job")
	require.Error(t, err)
}
