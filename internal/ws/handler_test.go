package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/codeshare-backend/internal/executor"
	"github.com/DoyleJ11/codeshare-backend/internal/hub"
)

type noopExecutor struct{}

func (noopExecutor) Execute(context.Context, executor.Request) (executor.Result, error) {
	return executor.Result{}, nil
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newServer(t *testing.T) (*hub.Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := hub.NewHub(ctx, zap.NewNop(), noopExecutor{})

	srv := httptest.NewServer(Handler(h, Config{
		OutboxSize:        16,
		MessagesPerSecond: 100,
		MessageBurst:      100,
		MaxMessageBytes:   1 << 16,
	}, zap.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-h.Done()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f frame
	require.NoError(t, wsjson.Read(ctx, conn, &f))
	return f
}

func write(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, v))
}

func TestHandler_JoinReceivesInitState(t *testing.T) {
	_, url := newServer(t)
	conn := dial(t, url)

	write(t, conn, map[string]any{"type": "join", "data": map[string]string{"roomId": "R1", "userName": "A"}})

	f := read(t, conn)
	require.Equal(t, "initState", f.Type)
	assert.JSONEq(t, `{"code":"// start code here","users":["A"],"lockedBy":null,"output":""}`, string(f.Data))
	assert.Equal(t, "userJoined", read(t, conn).Type)
	assert.Equal(t, "toastMessage", read(t, conn).Type)
}

func TestHandler_BadFramesGetErrors(t *testing.T) {
	_, url := newServer(t)
	conn := dial(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{not json`)))
	f := read(t, conn)
	assert.Equal(t, "error", f.Type)

	write(t, conn, map[string]any{"type": "codeChange", "data": map[string]string{"code": "x"}})
	f = read(t, conn)
	require.Equal(t, "error", f.Type)
	assert.JSONEq(t, `{"message":"Invalid room or user"}`, string(f.Data))
}

func TestHandler_CloseActsAsDisconnect(t *testing.T) {
	h, url := newServer(t)
	a := dial(t, url)
	b := dial(t, url)

	write(t, a, map[string]any{"type": "join", "data": map[string]string{"roomId": "R1", "userName": "A"}})
	for i := 0; i < 3; i++ {
		read(t, a)
	}
	write(t, b, map[string]any{"type": "join", "data": map[string]string{"roomId": "R1", "userName": "B"}})
	for i := 0; i < 3; i++ {
		read(t, b)
	}

	require.NoError(t, a.Close(websocket.StatusNormalClosure, "bye"))

	f := read(t, b)
	require.Equal(t, "userJoined", f.Type)
	assert.JSONEq(t, `{"users":["B"]}`, string(f.Data))
	f = read(t, b)
	require.Equal(t, "toastMessage", f.Type)
	assert.JSONEq(t, `{"type":"warning","message":"A disconnected!"}`, string(f.Data))

	reply := make(chan hub.Stats, 1)
	require.True(t, h.Send(context.Background(), hub.GetStats{Reply: reply}))
	assert.Equal(t, hub.Stats{Rooms: 1, Sessions: 1}, <-reply)
}

func TestHandler_HubShutdownClosesWithGoingAway(t *testing.T) {
	h, url := newServer(t)
	conn := dial(t, url)

	write(t, conn, map[string]any{"type": "join", "data": map[string]string{"roomId": "R1", "userName": "A"}})
	for i := 0; i < 3; i++ {
		read(t, conn)
	}

	require.True(t, h.Send(context.Background(), hub.Shutdown{}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
