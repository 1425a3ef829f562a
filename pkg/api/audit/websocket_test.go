package audit

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// slowProvider answers like mockProvider after a delay.
type slowProvider struct {
	mockProvider
	delay time.Duration
}

func (s *slowProvider) GenerateResponse(ctx context.Context, system, user string, opts map[string]interface{}) (string, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return s.mockProvider.GenerateResponse(ctx, system, user, opts)
}

// readMessages keeps reading so the client answers server pings. The channel
// closes when the connection fails.
func readMessages(conn *websocket.Conn) <-chan ServerMessage {
	ch := make(chan ServerMessage, 64)
	go func() {
		defer close(ch)
		for {
			var msg ServerMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			ch <- msg
		}
	}()
	return ch
}

func waitForStatus(t *testing.T, ch <-chan ServerMessage, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			require.True(t, ok, "connection closed while waiting for %q", want)
			require.Empty(t, msg.Error)
			if msg.Status == want {
				return
			}
		case <-timeout:
			t.Fatalf("no %q message within 5s", want)
		}
	}
}

func TestWebSocket_IdleClientStaysConnected(t *testing.T) {
	pongWait := 300 * time.Millisecond
	srv, _ := newTestServer(t, Options{PongWait: pongWait})
	conn := dialWS(t, srv)
	msgs := readMessages(conn)

	time.Sleep(3 * pongWait)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionReset}))
	waitForStatus(t, msgs, StatusResetDone)
}

func TestWebSocket_LongUploadKeepsConnection(t *testing.T) {
	pongWait := 300 * time.Millisecond
	srv, mgr := newTestServer(t, Options{PongWait: pongWait})
	mgr.Register("slow", &slowProvider{mockProvider: mockProvider{reply: modelReply}, delay: 3 * pongWait})
	require.NoError(t, mgr.SetGlobalProvider("slow"))

	conn := dialWS(t, srv)
	msgs := readMessages(conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Action:   ActionUpload,
		Filename: "statements.txt",
		Content:  base64.StdEncoding.EncodeToString([]byte("Sales 2021 6000")),
	}))
	waitForStatus(t, msgs, StatusFileProcessed)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: ActionReset}))
	waitForStatus(t, msgs, StatusResetDone)
}
