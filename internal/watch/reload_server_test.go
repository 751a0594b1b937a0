package watch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/neuron/compiler/errors"
	"github.com/conduit-lang/neuron/internal/tooling/build"
)

func dialReload(t *testing.T, rs *ReloadServer) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(rs.HandleWebSocket))
	t.Cleanup(server.Close)

	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return rs.ConnectionCount() == 1 })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ReloadMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ReloadMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestReloadServer_HandleWebSocket(t *testing.T) {
	rs := NewReloadServer(nil, nil)
	defer rs.Close()

	conn := dialReload(t, rs)
	assert.Equal(t, 1, rs.ConnectionCount())

	conn.Close()
	waitFor(t, func() bool { return rs.ConnectionCount() == 0 })
}

func TestReloadServer_NotifyBuilding(t *testing.T) {
	rs := NewReloadServer(nil, nil)
	defer rs.Close()
	conn := dialReload(t, rs)

	rs.NotifyBuilding([]string{"/p/index.js", "/p/a.js"})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageBuilding, msg.Type)
	assert.Equal(t, []string{"/p/index.js", "/p/a.js"}, msg.Files)
	assert.NotZero(t, msg.Timestamp)
}

func TestReloadServer_NotifySuccess(t *testing.T) {
	rs := NewReloadServer(nil, nil)
	defer rs.Close()
	conn := dialReload(t, rs)

	rs.NotifySuccess(&build.BuildResult{
		BuildID:  "3f2a",
		Success:  true,
		Duration: 150 * time.Millisecond,
		Modules:  7,
		CacheHit: true,
	})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageSuccess, msg.Type)
	assert.Equal(t, "3f2a", msg.BuildID)
	assert.Equal(t, 150.0, msg.Duration)
	assert.Equal(t, 7, msg.Modules)
	assert.True(t, msg.CacheHit)
}

func TestReloadServer_NotifyErrors(t *testing.T) {
	rs := NewReloadServer(nil, nil)
	defer rs.Close()
	conn := dialReload(t, rs)

	ce := errors.NewCompilerError("resolver", errors.ErrNotInstalledCode,
		`dependency "lodash" is not installed`,
		errors.SourceLocation{File: "app@1.0.0/index.js"}, errors.Error).WithSpecifiers("lodash")
	rs.NotifyErrors("b1", []*ErrorInfo{ErrorInfoFrom(ce)})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageError, msg.Type)
	assert.Equal(t, "b1", msg.BuildID)
	require.Len(t, msg.Errors, 1)
	assert.Equal(t, "NB001", msg.Errors[0].Code)
	assert.Equal(t, "app@1.0.0/index.js", msg.Errors[0].Module)
	assert.Equal(t, []string{"lodash"}, msg.Errors[0].Specifiers)
	assert.Equal(t, "resolver", msg.Errors[0].Phase)
}

func TestReloadServer_RejectsForeignOrigin(t *testing.T) {
	rs := NewReloadServer(nil, nil)
	defer rs.Close()

	server := httptest.NewServer(http.HandlerFunc(rs.HandleWebSocket))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestReloadServer_CloseIsIdempotent(t *testing.T) {
	rs := NewReloadServer(nil, nil)
	_ = dialReload(t, rs)

	rs.Close()
	rs.Close()

	assert.Equal(t, 0, rs.ConnectionCount())
	assert.NotPanics(t, func() { rs.NotifyBuilding([]string{"x.js"}) })
}
