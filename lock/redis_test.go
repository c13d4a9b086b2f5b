package lock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/orderflow/core"
)

// fakeScripter keeps lock keys in a map and answers the obtain and release
// scripts by their argument shape: obtain sends value, token length and ttl;
// release sends the value only.
type fakeScripter struct {
	redis.Scripter

	mu   sync.Mutex
	keys map[string]string
	fail error
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{keys: map[string]string{}}
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.eval(ctx, keys, args)
}

func (f *fakeScripter) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.eval(ctx, keys, args)
}

func (f *fakeScripter) eval(ctx context.Context, keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	cmd := redis.NewCmd(ctx)
	if f.fail != nil {
		cmd.SetErr(f.fail)
		return cmd
	}
	key, value := keys[0], args[0].(string)

	if len(args) == 1 {
		if f.keys[key] != value {
			cmd.SetVal(int64(0))
			return cmd
		}
		delete(f.keys, key)
		cmd.SetVal(int64(1))
		return cmd
	}

	if _, held := f.keys[key]; held {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	f.keys[key] = value
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeScripter) held(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keys[key]
	return ok
}

func TestLock_ObtainAndRelease(t *testing.T) {
	// GIVEN: a free key
	rdb := newFakeScripter()
	locker := NewRedisLocker(rdb, 0)
	ctx := context.Background()

	// WHEN: the key is locked
	release, err := locker.Lock(ctx, "so-1")

	// THEN: the prefixed key is held until release
	require.NoError(t, err)
	assert.True(t, rdb.held("orderflow:lock:so-1"))
	release()
	assert.False(t, rdb.held("orderflow:lock:so-1"))

	// AND: the key can be taken again
	release, err = locker.Lock(ctx, "so-1")
	require.NoError(t, err)
	release()
}

func TestLock_HeldKeyFailsFast(t *testing.T) {
	// GIVEN: a key held by another process
	rdb := newFakeScripter()
	logger, hook := test.NewNullLogger()
	other := NewRedisLocker(rdb, 0)
	locker := NewRedisLocker(rdb, 0)
	locker.SetLogger(logrus.NewEntry(logger))
	ctx := context.Background()
	release, err := other.Lock(ctx, "so-1")
	require.NoError(t, err)
	defer release()

	// WHEN: this process asks for it
	_, err = locker.Lock(ctx, "so-1")

	// THEN: it gets a lock-held error naming the key and a warning is logged
	assert.ErrorIs(t, err, core.ErrLockHeld)
	assert.Contains(t, err.Error(), "so-1")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// AND: other keys are unaffected
	releaseOther, err := locker.Lock(ctx, "so-2")
	require.NoError(t, err)
	releaseOther()
}

func TestLock_RedisErrorIsNotLockHeld(t *testing.T) {
	rdb := newFakeScripter()
	rdb.fail = errors.New("connection refused")
	locker := NewRedisLocker(rdb, 0)

	_, err := locker.Lock(context.Background(), "so-1")

	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrLockHeld)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLock_ReleaseAfterExpiryIsQuiet(t *testing.T) {
	// GIVEN: a lock whose key expired and was taken by someone else
	rdb := newFakeScripter()
	logger, hook := test.NewNullLogger()
	locker := NewRedisLocker(rdb, 0)
	locker.SetLogger(logrus.NewEntry(logger))
	release, err := locker.Lock(context.Background(), "so-1")
	require.NoError(t, err)
	rdb.mu.Lock()
	rdb.keys["orderflow:lock:so-1"] = "someone-else"
	rdb.mu.Unlock()

	// WHEN: the stale holder releases
	release()

	// THEN: the new holder keeps the key and nothing is logged
	assert.True(t, rdb.held("orderflow:lock:so-1"))
	assert.Empty(t, hook.AllEntries())
}
