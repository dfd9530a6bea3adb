package hub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := NewHub()
	go h.Run(ctx)
	return h
}

func receive(t *testing.T, conn *Connection) []byte {
	t.Helper()
	select {
	case msg := <-conn.Send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no message for connection %s", conn.ID)
		return nil
	}
}

func assertSilent(t *testing.T, conn *Connection) {
	t.Helper()
	select {
	case msg := <-conn.Send:
		t.Fatalf("unexpected message %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesThreadWatchersOnly(t *testing.T) {
	h := startHub(t)
	a1 := h.NewConnection(nil, "thread-a")
	a2 := h.NewConnection(nil, "thread-a")
	b := h.NewConnection(nil, "thread-b")
	h.Register(a1)
	h.Register(a2)
	h.Register(b)

	h.Broadcast("thread-a", []byte(`{"type":"RUN_STARTED"}`))

	assert.Equal(t, `{"type":"RUN_STARTED"}`, string(receive(t, a1)))
	assert.Equal(t, `{"type":"RUN_STARTED"}`, string(receive(t, a2)))
	assertSilent(t, b)
	assert.Equal(t, 3, h.ConnectionCount())
	assert.True(t, h.HasWatchers("thread-a"))
}

func TestUnregisterClosesSend(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "thread-a")
	h.Register(conn)
	h.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatalf("send channel not closed")
	}
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("late")), ErrConnectionClosed)
	assert.Equal(t, 0, h.ConnectionCount())
	assert.False(t, h.HasWatchers("thread-a"))
}

func TestSendToConnectionBufferFull(t *testing.T) {
	h := NewHub()
	conn := &Connection{ID: "c", Send: make(chan []byte, 1)}
	require.NoError(t, h.SendJSONToConnection(conn, map[string]string{"type": "watching"}))
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("x")), ErrBufferFull)
}

func TestStoppedHubDropsCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		h.Register(h.NewConnection(nil, "t"))
		h.Broadcast("t", []byte("x"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("calls on a stopped hub blocked")
	}
}

func TestRedisRelayFansOutAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	newInstance := func() (*Hub, *RedisRelay) {
		client, err := NewRedisClient("redis://" + mr.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		h := startHub(t)
		relay := NewRedisRelay(client, h, "")
		go func() { _ = relay.Run(ctx) }()
		return h, relay
	}
	hubA, relayA := newInstance()
	hubB, _ := newInstance()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	local := hubA.NewConnection(nil, "thread-1")
	remote := hubB.NewConnection(nil, "thread-1")
	hubA.Register(local)
	hubB.Register(remote)

	relayA.Broadcast("thread-1", []byte(`{"type":"RUN_FINISHED"}`))

	assert.JSONEq(t, `{"type":"RUN_FINISHED"}`, string(receive(t, local)))
	assert.JSONEq(t, `{"type":"RUN_FINISHED"}`, string(receive(t, remote)))
	assertSilent(t, local)
}

func TestRelayDropsMalformedPayloads(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "t")
	h.Register(conn)
	relay := NewRedisRelay(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), h, "chan")

	relay.deliver("not json")
	relay.deliver(`{"origin":"` + relay.origin + `","thread_id":"t","data":{}}`)
	assertSilent(t, conn)

	relay.deliver(`{"origin":"other","thread_id":"t","data":{"type":"CUSTOM"}}`)
	assert.JSONEq(t, `{"type":"CUSTOM"}`, string(receive(t, conn)))
}

func TestRedisRelayCarriesDecisions(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	type decision struct {
		id   string
		data string
	}
	newInstance := func() (*RedisRelay, chan decision) {
		client, err := NewRedisClient("redis://" + mr.Addr())
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		relay := NewRedisRelay(client, startHub(t), "")
		got := make(chan decision, 1)
		relay.OnDecision(func(id string, data []byte) { got <- decision{id, string(data)} })
		go func() { _ = relay.Run(ctx) }()
		return relay, got
	}
	relayA, gotA := newInstance()
	_, gotB := newInstance()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	relayA.PublishDecision("ap_1", []byte(`{"Decision":"approve"}`))

	select {
	case d := <-gotB:
		assert.Equal(t, "ap_1", d.id)
		assert.JSONEq(t, `{"Decision":"approve"}`, d.data)
	case <-time.After(2 * time.Second):
		t.Fatalf("decision not relayed")
	}
	select {
	case d := <-gotA:
		t.Fatalf("origin received its own decision %v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelayBroadcastDoesNotWaitForRedis(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "t")
	h.Register(conn)
	require.Eventually(t, func() bool { return h.HasWatchers("t") }, time.Second, 5*time.Millisecond)
	// Nothing drains the publish queue without Run.
	relay := NewRedisRelay(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), h, "chan")

	done := make(chan struct{})
	go func() {
		relay.Broadcast("t", []byte(`{"type":"RUN_STARTED"}`))
		for range publishQueueSize + 10 {
			relay.Broadcast("unwatched", []byte(`{}`))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcast blocked on redis")
	}
	assert.JSONEq(t, `{"type":"RUN_STARTED"}`, string(receive(t, conn)))
	assert.Len(t, relay.queue, publishQueueSize)
}
