package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/havaian/gossip/domain"
	"github.com/stretchr/testify/require"
)

// serve upgrades one client and hands the server side connection to fn.
func serve(t *testing.T, bufferSize int, fn func(conn *Connection)) *websocket.Conn {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fn(NewConnection(domain.Capability{ActorID: "moderator-1", Role: domain.RoleModerator, Active: true}, ws, bufferSize))
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func readCloseCode(t *testing.T, client *websocket.Conn) int {
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	return closeErr.Code
}

func TestConnection_WriteFailure_SendsTransmittableCloseCode(t *testing.T) {
	req := require.New(t)

	// Given a connection closed after a failed write
	client := serve(t, 1, func(conn *Connection) {
		conn.Close(closeWriteFailed, "write failed")
	})

	// Then the client receives an internal error close frame, not a protocol error
	req.Equal(websocket.CloseInternalServerErr, readCloseCode(t, client))
}

func TestConnection_FullBuffer_ClosesGoingAway(t *testing.T) {
	req := require.New(t)
	sent := make(chan error, 2)

	// Given a connection with a one slot buffer and no write loop draining it
	client := serve(t, 1, func(conn *Connection) {
		sent <- conn.Send([]byte(`{"type":"new-message"}`))
		sent <- conn.Send([]byte(`{"type":"new-message"}`))
	})

	// Then the second send overflows and the client is told the server went away
	req.Equal(websocket.CloseGoingAway, readCloseCode(t, client))
	req.NoError(<-sent)
	req.ErrorIs(<-sent, errBufferExceeded)
}
