package conn_test

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wshub/core/conn"
)

type inbound struct {
	messageType int
	data        []byte
	err         error
}

type written struct {
	messageType int
	data        []byte
}

// fakeSocket is an in-memory conn.Socket driven by the test.
type fakeSocket struct {
	in        chan inbound
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	frames   []written
	controls []int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:     make(chan inbound, 16),
		closed: make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case m := <-s.in:
		if m.err != nil {
			return 0, nil, m.err
		}
		return m.messageType, m.data, nil
	case <-s.closed:
		return 0, nil, net.ErrClosed
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, written{messageType: messageType, data: data})
	return nil
}

func (s *fakeSocket) WriteControl(messageType int, _ []byte, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls = append(s.controls, messageType)
	return nil
}

func (s *fakeSocket) SetReadLimit(int64) {}
func (s *fakeSocket) SetReadDeadline(time.Time) error { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }
func (s *fakeSocket) SetPongHandler(func(string) error) {}
func (s *fakeSocket) push(messageType int, data string) { s.in <- inbound{messageType: messageType, data: []byte(data)} }
func (s *fakeSocket) fail(err error) { s.in <- inbound{err: err} }

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) Frames() []written {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]written(nil), s.frames...)
}

func (s *fakeSocket) Controls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.controls...)
}

func runConn(ctx context.Context, t *testing.T, c *conn.Conn) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	require.Eventually(t, func() bool { return c.ReadyState() != conn.StateConnecting },
		time.Second, time.Millisecond)
	return done
}

func TestConn_Identity(t *testing.T) {
	t.Parallel()

	a := conn.New(newFakeSocket(), 2)
	b := conn.New(newFakeSocket(), 3)

	assert.Equal(t, 2, a.ID())
	assert.NotEmpty(t, a.UUID())
	assert.NotEqual(t, a.UUID(), b.UUID())
	assert.Equal(t, conn.StateConnecting, a.ReadyState())

	c := conn.New(newFakeSocket(), 4, conn.WithUUID("fixed"), conn.WithRemoteAddr("10.0.0.1:5000"))
	assert.Equal(t, "fixed", c.UUID())
	assert.Equal(t, "10.0.0.1:5000", c.RemoteAddr())
	assert.Contains(t, c.String(), "conn#4")
}

func TestConn_Lifecycle(t *testing.T) {
	t.Parallel()

	sock := newFakeSocket()
	c := conn.New(sock, 2)

	var mu sync.Mutex
	var seen []conn.EventKind
	record := func(ctx context.Context, ev conn.Event) error {
		mu.Lock()
		seen = append(seen, ev.Kind())
		mu.Unlock()
		return nil
	}
	for _, k := range conn.Kinds {
		_, err := c.Events().On(k, record)
		require.NoError(t, err)
	}

	var closeEv conn.CloseEvent
	_, err := c.OnClose(func(_ context.Context, ev conn.CloseEvent) error {
		closeEv = ev
		return nil
	})
	require.NoError(t, err)

	var texts []string
	_, err = c.OnMessage(func(_ context.Context, ev conn.MessageEvent) error {
		texts = append(texts, ev.Text())
		return nil
	})
	require.NoError(t, err)

	done := runConn(context.Background(), t, c)
	assert.Equal(t, conn.StateOpen, c.ReadyState())

	sock.push(websocket.TextMessage, "one")
	sock.push(websocket.TextMessage, "two")
	sock.fail(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "bye"})

	require.NoError(t, <-done)

	assert.Equal(t, conn.StateClosed, c.ReadyState())
	assert.Equal(t, []string{"one", "two"}, texts)
	assert.Equal(t, []conn.EventKind{conn.EventOpen, conn.EventMessage, conn.EventMessage, conn.EventClose}, seen)
	assert.Equal(t, websocket.CloseNormalClosure, closeEv.Code)
	assert.Equal(t, "bye", closeEv.Reason)
	assert.True(t, closeEv.WasClean)
}

func TestConn_Close(t *testing.T) {
	t.Parallel()

	t.Run("emits synthetic close exactly once", func(t *testing.T) {
		t.Parallel()

		sock := newFakeSocket()
		c := conn.New(sock, 2)

		var closes atomic.Int32
		var got conn.CloseEvent
		_, _ = c.OnClose(func(_ context.Context, ev conn.CloseEvent) error {
			closes.Add(1)
			got = ev
			return nil
		})
		var errorsSeen atomic.Int32
		_, _ = c.OnError(func(context.Context, conn.ErrorEvent) error {
			errorsSeen.Add(1)
			return nil
		})

		done := runConn(context.Background(), t, c)

		require.NoError(t, c.Close(4000, "kicked"))
		require.NoError(t, <-done)
		require.NoError(t, c.Close(4001, "again"))

		assert.Equal(t, int32(1), closes.Load())
		assert.Equal(t, int32(0), errorsSeen.Load())
		assert.Equal(t, 4000, got.Code)
		assert.Equal(t, "kicked", got.Reason)
		assert.True(t, got.WasClean)
		assert.False(t, got.Time.IsZero())
		assert.Equal(t, conn.StateClosed, c.ReadyState())
		assert.Contains(t, sock.Controls(), websocket.CloseMessage)
		assert.ErrorIs(t, c.Send("late"), conn.ErrClosed)
	})

	t.Run("missing code and reason default to zero values", func(t *testing.T) {
		t.Parallel()

		c := conn.New(newFakeSocket(), 2)
		var got conn.CloseEvent
		_, _ = c.OnClose(func(_ context.Context, ev conn.CloseEvent) error {
			got = ev
			return nil
		})

		require.NoError(t, c.Close(0, ""))
		assert.Equal(t, 0, got.Code)
		assert.Equal(t, "", got.Reason)
		assert.True(t, got.WasClean)
	})

	t.Run("run after close fails", func(t *testing.T) {
		t.Parallel()

		c := conn.New(newFakeSocket(), 2)
		require.NoError(t, c.Close(1000, ""))
		assert.ErrorIs(t, c.Run(context.Background()), conn.ErrClosed)
	})
}

func TestConn_TransportFault(t *testing.T) {
	t.Parallel()

	sock := newFakeSocket()
	c := conn.New(sock, 2)

	var mu sync.Mutex
	var order []conn.EventKind
	var faultErr error
	_, _ = c.OnError(func(_ context.Context, ev conn.ErrorEvent) error {
		mu.Lock()
		order = append(order, ev.Kind())
		faultErr = ev.Err
		mu.Unlock()
		return nil
	})
	var closeEv conn.CloseEvent
	_, _ = c.OnClose(func(_ context.Context, ev conn.CloseEvent) error {
		mu.Lock()
		order = append(order, ev.Kind())
		closeEv = ev
		mu.Unlock()
		return nil
	})

	done := runConn(context.Background(), t, c)
	sock.fail(io.ErrUnexpectedEOF)
	require.NoError(t, <-done)

	assert.Equal(t, []conn.EventKind{conn.EventError, conn.EventClose}, order)
	assert.ErrorIs(t, faultErr, io.ErrUnexpectedEOF)
	assert.Equal(t, websocket.CloseAbnormalClosure, closeEv.Code)
	assert.False(t, closeEv.WasClean)
}

func TestConn_ContextCancellation(t *testing.T) {
	t.Parallel()

	c := conn.New(newFakeSocket(), 2)
	var got conn.CloseEvent
	_, _ = c.OnClose(func(_ context.Context, ev conn.CloseEvent) error {
		got = ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := runConn(ctx, t, c)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancellation")
	}
	assert.Equal(t, websocket.CloseGoingAway, got.Code)
}

func TestConn_RunTwice(t *testing.T) {
	t.Parallel()

	c := conn.New(newFakeSocket(), 2)
	done := runConn(context.Background(), t, c)

	assert.ErrorIs(t, c.Run(context.Background()), conn.ErrAlreadyRunning)

	require.NoError(t, c.Close(1000, ""))
	require.NoError(t, <-done)
}

func TestConn_Send(t *testing.T) {
	t.Parallel()

	sock := newFakeSocket()
	c := conn.New(sock, 2)

	// Frames queued before Run are flushed once the write pump starts
	require.NoError(t, c.Send([]byte{0x01, 0x02}))

	done := runConn(context.Background(), t, c)
	require.NoError(t, c.Send(map[string]int{"n": 1}))
	require.NoError(t, c.Send(`{"already":"json"}`))

	require.Eventually(t, func() bool { return len(sock.Frames()) == 3 }, time.Second, time.Millisecond)
	frames := sock.Frames()
	assert.Equal(t, written{websocket.BinaryMessage, []byte{0x01, 0x02}}, frames[0])
	assert.Equal(t, written{websocket.TextMessage, []byte(`{"n":1}`)}, frames[1])
	assert.Equal(t, written{websocket.TextMessage, []byte(`{"already":"json"}`)}, frames[2])

	assert.ErrorIs(t, c.Send(make(chan int)), conn.ErrSerialization)

	require.NoError(t, c.Close(1000, ""))
	require.NoError(t, <-done)
}

func TestConn_SendBufferFull(t *testing.T) {
	t.Parallel()

	c := conn.New(newFakeSocket(), 2, conn.WithSendBufferSize(1))
	require.NoError(t, c.Send("first"))
	assert.ErrorIs(t, c.Send("second"), conn.ErrSendBufferFull)
}

func TestConn_MessageFilter(t *testing.T) {
	t.Parallel()

	sock := newFakeSocket()
	c := conn.New(sock, 2, conn.WithMessageFilter(func(_ context.Context, _ *conn.Conn, msg conn.MessageEvent) bool {
		return msg.Text() != "drop"
	}))

	var got []string
	_, _ = c.OnMessage(func(_ context.Context, ev conn.MessageEvent) error {
		got = append(got, ev.Text())
		return nil
	})

	done := runConn(context.Background(), t, c)
	sock.push(websocket.TextMessage, "keep")
	sock.push(websocket.TextMessage, "drop")
	sock.push(websocket.TextMessage, "keep too")
	sock.fail(&websocket.CloseError{Code: websocket.CloseGoingAway})
	require.NoError(t, <-done)

	assert.Equal(t, []string{"keep", "keep too"}, got)
}

func TestConn_PullMessage(t *testing.T) {
	t.Parallel()

	sock := newFakeSocket()
	c := conn.New(sock, 2)
	done := runConn(context.Background(), t, c)

	_, err := c.Events().Pull(context.Background(), conn.EventMessage, 10*time.Millisecond)
	require.Error(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		sock.push(websocket.TextMessage, "pong")
	}()

	ev, err := c.Events().Pull(context.Background(), conn.EventMessage, time.Second)
	require.NoError(t, err)
	msg, ok := ev.(conn.MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "pong", msg.Text())
	assert.Equal(t, 0, c.Events().ListenerCount(conn.EventMessage))

	require.NoError(t, c.Close(1000, ""))
	require.NoError(t, <-done)
}

func TestConn_ListenerErrorsDoNotStopConnection(t *testing.T) {
	t.Parallel()

	sock := newFakeSocket()
	c := conn.New(sock, 2)

	var calls atomic.Int32
	_, _ = c.OnMessage(func(context.Context, conn.MessageEvent) error {
		calls.Add(1)
		return errors.New("listener failed")
	})

	done := runConn(context.Background(), t, c)
	sock.push(websocket.TextMessage, "a")
	sock.push(websocket.TextMessage, "b")
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, conn.StateOpen, c.ReadyState())

	require.NoError(t, c.Close(1000, ""))
	require.NoError(t, <-done)
}
