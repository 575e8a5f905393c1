package hub_test

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wshub/core/hub"
	"github.com/dmitrymomot/wshub/core/room"
)

const waitFor = 2 * time.Second

func newHub(t *testing.T, mutate func(*hub.Config), opts ...hub.Option) *hub.Hub {
	t.Helper()

	cfg := hub.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Path = "/ws"
	if mutate != nil {
		mutate(&cfg)
	}

	h, err := hub.New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, h.Serve())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return h
}

func dial(t *testing.T, h *hub.Hub) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(h.Address()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// collect buffers hub events of one type for assertions.
type collect[T any] struct {
	ch chan T
}

func newCollect[T any]() *collect[T] { return &collect[T]{ch: make(chan T, 64)} }

func (c *collect[T]) fn(_ context.Context, ev T) error {
	c.ch <- ev
	return nil
}

func (c *collect[T]) next(t *testing.T) T {
	t.Helper()
	select {
	case ev := <-c.ch:
		return ev
	case <-time.After(waitFor):
		var zero T
		t.Fatalf("no %T within %s", zero, waitFor)
		return zero
	}
}

func TestHub_FirstConnectionIDIsTwo(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	connected := newCollect[hub.ConnectEvent]()
	_, err := h.OnConnect(connected.fn)
	require.NoError(t, err)

	dial(t, h)

	ev := connected.next(t)
	assert.Equal(t, 2, ev.Conn.ID())
	assert.NotEmpty(t, ev.Conn.UUID())
	assert.False(t, ev.Time.IsZero())

	c, ok := h.Conn(2)
	require.True(t, ok)
	assert.Same(t, ev.Conn, c)
	assert.Equal(t, 1, h.Len())
}

func TestHub_PullConnect(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	fut := h.Events().PullAsync(context.Background(), hub.EventConnect, waitFor)

	dial(t, h)

	ev, err := fut.Await()
	require.NoError(t, err)
	connect, ok := ev.(hub.ConnectEvent)
	require.True(t, ok)
	assert.Equal(t, 2, connect.Conn.ID())
}

func TestHub_Rejections(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	base := "http://" + h.Addr()

	t.Run("wrong path upgrade", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(h.Address()+"/other", nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "The client has not specified the correct path that the server is listening on.", string(body))
	})

	t.Run("wrong path plain request", func(t *testing.T) {
		resp, err := http.Get(base + "/other")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)
	})

	t.Run("not an upgrade", func(t *testing.T) {
		resp, err := http.Get(base + "/ws")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
		assert.Equal(t, "not trying to upgrade as websocket.", string(body))
	})

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, int64(3), h.Stats().Rejected)
}

func TestHub_EmptyPathAcceptsAnyPath(t *testing.T) {
	t.Parallel()

	h := newHub(t, func(c *hub.Config) { c.Path = "" })

	ws, _, err := websocket.DefaultDialer.Dial(h.Address()+"/anything/at/all", nil)
	require.NoError(t, err)
	defer ws.Close()

	assert.Eventually(t, func() bool { return h.Len() == 1 }, waitFor, 10*time.Millisecond)
}

func TestHub_MessageReemitted(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	messages := newCollect[hub.MessageEvent]()
	_, err := h.OnMessage(messages.fn)
	require.NoError(t, err)

	ws := dial(t, h)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))

	ev := messages.next(t)
	assert.Equal(t, "hello", ev.Text())
	assert.Equal(t, websocket.TextMessage, ev.Type)
	assert.Equal(t, 2, ev.Conn.ID())

	assert.Eventually(t, func() bool { return h.Stats().MessagesReceived == 1 }, waitFor, 10*time.Millisecond)
}

func TestHub_Disconnect(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	connected := newCollect[hub.ConnectEvent]()
	disconnected := newCollect[hub.DisconnectEvent]()
	_, _ = h.OnConnect(connected.fn)
	_, _ = h.OnDisconnect(disconnected.fn)

	ws := dial(t, h)
	c := connected.next(t).Conn
	h.Channel("lobby").Join(c)

	require.NoError(t, ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(4000, "bye"), time.Now().Add(time.Second)))

	ev := disconnected.next(t)
	assert.Same(t, c, ev.Conn)
	assert.Equal(t, 4000, ev.Code)
	assert.Equal(t, "bye", ev.Reason)

	_, ok := h.Conn(c.ID())
	assert.False(t, ok)
	assert.Equal(t, 0, h.Len())

	// Membership is kept unless AutoLeave is on.
	assert.True(t, h.Channel("lobby").Has(c))
}

func TestHub_AutoLeave(t *testing.T) {
	t.Parallel()

	h := newHub(t, func(c *hub.Config) { c.AutoLeave = true })
	connected := newCollect[hub.ConnectEvent]()
	disconnected := newCollect[hub.DisconnectEvent]()
	_, _ = h.OnConnect(connected.fn)
	_, _ = h.OnDisconnect(disconnected.fn)

	ws := dial(t, h)
	c := connected.next(t).Conn

	red := h.Channel("rooms/red")
	red.Join(c)
	h.Group("rooms").Join(c)

	emptied := newCollect[room.EmptyEvent]()
	_, err := red.OnEmpty(emptied.fn)
	require.NoError(t, err)

	_ = ws.Close()

	disconnected.next(t)
	assert.Equal(t, "red", emptied.next(t).Name)
	assert.Equal(t, 0, red.Len())
	assert.Equal(t, 0, h.Group("rooms").Len())
}

func TestHub_ChannelBroadcast(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	connected := newCollect[hub.ConnectEvent]()
	_, _ = h.OnConnect(connected.fn)

	a := dial(t, h)
	ca := connected.next(t).Conn
	b := dial(t, h)
	cb := connected.next(t).Conn
	outsider := dial(t, h)
	connected.next(t)

	require.Same(t, h.Channel("rooms/red"), h.Group("rooms").Channel("red"))
	h.Channel("rooms/red").Join(ca, cb)

	require.NoError(t, h.Channel("rooms/red").Send(map[string]string{"msg": "hi"}))

	for _, ws := range []*websocket.Conn{a, b} {
		_ = ws.SetReadDeadline(time.Now().Add(waitFor))
		mt, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, mt)

		var got map[string]string
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "hi", got["msg"])
	}

	_ = outsider.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := outsider.ReadMessage()
	assert.Error(t, err)
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	clients := []*websocket.Conn{dial(t, h), dial(t, h)}
	require.Eventually(t, func() bool { return h.Len() == 2 }, waitFor, 10*time.Millisecond)

	require.NoError(t, h.Broadcast("plain text"))
	for _, ws := range clients {
		_ = ws.SetReadDeadline(time.Now().Add(waitFor))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `"plain text"`, string(data))
	}
}

func TestHub_UniqueIDsUnderChurn(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	disconnected := newCollect[hub.DisconnectEvent]()
	_, _ = h.OnDisconnect(disconnected.fn)

	var open []*websocket.Conn
	for range 5 {
		open = append(open, dial(t, h))
	}
	require.Eventually(t, func() bool { return h.Len() == 5 }, waitFor, 10*time.Millisecond)

	for _, ws := range open[1:3] {
		_ = ws.Close()
		disconnected.next(t)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, _, err := websocket.DefaultDialer.Dial(h.Address()+"/ws", nil)
			if assert.NoError(t, err) {
				t.Cleanup(func() { _ = ws.Close() })
			}
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return h.Len() == 7 }, waitFor, 10*time.Millisecond)

	seen := make(map[int]bool)
	for _, c := range h.Conns() {
		assert.GreaterOrEqual(t, c.ID(), 2)
		assert.False(t, seen[c.ID()], "duplicate id %d", c.ID())
		seen[c.ID()] = true
	}
	assert.Len(t, seen, 7)
	assert.Equal(t, int64(9), h.Stats().Accepted)
}

func TestHub_RandomChurnKeepsIDsUnique(t *testing.T) {
	t.Parallel()

	const seed = 20240917
	rng := rand.New(rand.NewPCG(seed, seed))

	h := newHub(t, nil)
	connected := newCollect[hub.ConnectEvent]()
	disconnected := newCollect[hub.DisconnectEvent]()
	_, _ = h.OnConnect(connected.fn)
	_, _ = h.OnDisconnect(disconnected.fn)

	var open []*websocket.Conn
	for step := range 60 {
		if len(open) == 0 || (len(open) < 8 && rng.IntN(2) == 0) {
			open = append(open, dial(t, h))
			connected.next(t)
		} else {
			i := rng.IntN(len(open))
			_ = open[i].Close()
			open = append(open[:i], open[i+1:]...)
			disconnected.next(t)
		}

		conns := h.Conns()
		require.Len(t, conns, len(open), "step %d", step)
		seen := make(map[int]bool, len(conns))
		for _, c := range conns {
			require.GreaterOrEqual(t, c.ID(), 2, "step %d", step)
			require.False(t, seen[c.ID()], "step %d: duplicate id %d", step, c.ID())
			seen[c.ID()] = true
		}
	}
}

func TestHub_ServeIdempotent(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	addr := h.Addr()

	require.NoError(t, h.Serve())
	assert.Equal(t, addr, h.Addr())
	assert.True(t, h.Listening())
	assert.True(t, strings.HasPrefix(h.Address(), "ws://127.0.0.1:"))
}

func TestHub_Close(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	disconnected := newCollect[hub.DisconnectEvent]()
	_, _ = h.OnDisconnect(disconnected.fn)

	ws := dial(t, h)
	require.Eventually(t, func() bool { return h.Len() == 1 }, waitFor, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Close(ctx))

	_ = ws.SetReadDeadline(time.Now().Add(waitFor))
	_, _, err := ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	ev := disconnected.next(t)
	assert.Equal(t, websocket.CloseGoingAway, ev.Code)

	assert.False(t, h.Listening())
	assert.True(t, h.Closed())
	assert.Equal(t, 0, h.Len())

	assert.NoError(t, h.Close(ctx))
	assert.ErrorIs(t, h.Serve(), hub.ErrClosed)
}

func TestHub_CloseWithoutServe(t *testing.T) {
	t.Parallel()

	cfg := hub.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Path = "/ws"
	h, err := hub.New(cfg)
	require.NoError(t, err)
	assert.False(t, h.Listening())

	require.NoError(t, h.Close(context.Background()))
	assert.False(t, h.Closed())

	require.NoError(t, h.Serve())
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	assert.True(t, h.Listening())
	dial(t, h)
	require.Eventually(t, func() bool { return h.Len() == 1 }, waitFor, 10*time.Millisecond)
}

func TestHub_ServeThenCloseImmediately(t *testing.T) {
	t.Parallel()

	for i := range 30 {
		cfg := hub.DefaultConfig()
		cfg.Host = "127.0.0.1"
		cfg.Port = 0
		h, err := hub.New(cfg)
		require.NoError(t, err)

		require.NoError(t, h.Serve())
		addr := h.Addr()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err = h.Close(ctx)
		cancel()
		require.NoError(t, err, "iteration %d", i)
		assert.False(t, h.Listening())
		assert.True(t, h.Closed())

		_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
		assert.Error(t, err, "listener still accepting after Close")
	}
}

func TestHub_AutoServe(t *testing.T) {
	t.Parallel()

	cfg := hub.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.AutoServe = true

	h, err := hub.New(cfg)
	require.NoError(t, err)
	defer h.Close(context.Background())

	assert.True(t, h.Listening())
	ws, _, err := websocket.DefaultDialer.Dial(h.Address()+"/", nil)
	require.NoError(t, err)
	_ = ws.Close()
}

func TestHub_Run(t *testing.T) {
	t.Parallel()

	cfg := hub.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.ShutdownTimeout = time.Second

	h, err := hub.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx)() }()

	require.Eventually(t, h.Listening, waitFor, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("run did not return")
	}
	assert.True(t, h.Closed())
}

func TestHub_RateLimit(t *testing.T) {
	t.Parallel()

	h := newHub(t, func(c *hub.Config) {
		c.RateLimitCapacity = 2
		c.RateLimitRefillRate = 1
		c.RateLimitRefillInterval = time.Hour
	})
	messages := newCollect[hub.MessageEvent]()
	_, _ = h.OnMessage(messages.fn)

	ws := dial(t, h)
	for range 5 {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("x")))
	}

	messages.next(t)
	messages.next(t)
	assert.Eventually(t, func() bool { return h.Stats().MessagesDropped == 3 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, int64(2), h.Stats().MessagesReceived)
}

func TestHub_InvalidRateLimit(t *testing.T) {
	t.Parallel()

	cfg := hub.DefaultConfig()
	cfg.RateLimitCapacity = 5
	cfg.RateLimitRefillRate = 0

	_, err := hub.New(cfg)
	assert.ErrorIs(t, err, hub.ErrInvalidConfig)
}

func TestHub_AllowedOrigins(t *testing.T) {
	t.Parallel()

	h := newHub(t, func(c *hub.Config) { c.AllowedOrigins = []string{"good.example"} })

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(h.Address()+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://good.example")
	ws, _, err := websocket.DefaultDialer.Dial(h.Address()+"/ws", header)
	require.NoError(t, err)
	_ = ws.Close()
}

func TestHub_WriteMetrics(t *testing.T) {
	t.Parallel()

	h := newHub(t, nil)
	dial(t, h)
	require.Eventually(t, func() bool { return h.Stats().Connections == 1 }, waitFor, 10*time.Millisecond)

	var sb strings.Builder
	h.WriteMetrics(&sb)
	assert.Contains(t, sb.String(), "hub.connections")
	assert.NotNil(t, h.Metrics().Get("hub.connections"))
}
