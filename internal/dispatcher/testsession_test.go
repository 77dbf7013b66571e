package dispatcher

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaywire/chat/internal/session"
)

// newTestSession spins a real WebSocket connection over an httptest
// server, the way longregen-alicia's ws_broadcaster_test.go notes a
// broadcaster's Send side can't be exercised without one. serverSess is
// the Session the dispatcher writes to and through; client is the
// test's read side for asserting on acked/published frames.
func newTestSession(t *testing.T, uid uuid.UUID) (serverSess *session.Session, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	sessCh := make(chan *session.Session, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		s := session.New(uuid.NewString(), ws, uid, "test-device", 16, zap.NewNop())
		go s.WritePump()
		sessCh <- s
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s := <-sessCh
	t.Cleanup(s.Close)
	return s, conn
}

// readFrame reads one text frame from the client side with a deadline
// so a missing event fails the test instead of hanging it.
func readFrame(t *testing.T, client *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := client.ReadMessage()
	require.NoError(t, err)
	return payload
}
