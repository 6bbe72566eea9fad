package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishUser(context.Background(), "abc", "payload"))
	assert.NoError(t, n.PublishBroadcast(context.Background(), "payload"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {
		t.Fatal("no messages expected")
	}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:65f1c0ffee00000000000001", UserChannel("65f1c0ffee00000000000001"))

	id, ok := userFromChannel(UserChannel("abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
	_, ok = userFromChannel("notifications:user:")
	assert.False(t, ok)
}

func TestNotifier_SubscriberReceivesUntilCancel(t *testing.T) {
	n := NewNotifier(newTestRedis(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type msg struct{ channel, payload string }
	got := make(chan msg, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- msg{channel, payload}
	}))

	require.NoError(t, n.PublishUser(context.Background(), "u1", "hello"))
	select {
	case m := <-got:
		assert.Equal(t, UserChannel("u1"), m.channel)
		assert.Equal(t, "hello", m.payload)
	case <-time.After(testEventuallyTimeout):
		t.Fatal("message not delivered")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, n.PublishBroadcast(context.Background(), "after-cancel"))
	assert.Never(t, func() bool { return len(got) > 0 }, 20*testPollInterval, testPollInterval)
}
