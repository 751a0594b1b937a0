package watch

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/conduit-lang/neuron/compiler/errors"
	"github.com/conduit-lang/neuron/internal/metrics"
	"github.com/conduit-lang/neuron/internal/tooling/build"
)

// Reload message types
const (
	MessageBuilding = "building"
	MessageSuccess  = "success"
	MessageError    = "error"
)

// ReloadServer manages WebSocket connections for live reload
type ReloadServer struct {
	connections map[*websocket.Conn]bool
	broadcast   chan *ReloadMessage
	register    chan *websocket.Conn
	unregister  chan *websocket.Conn
	done        chan struct{}
	closeOnce   sync.Once
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// ReloadMessage is sent to every connected client
type ReloadMessage struct {
	Type      string       `json:"type"`
	BuildID   string       `json:"build_id,omitempty"`
	Timestamp int64        `json:"timestamp"`
	Files     []string     `json:"files,omitempty"`
	Duration  float64      `json:"duration,omitempty"` // Milliseconds
	Modules   int          `json:"modules,omitempty"`
	CacheHit  bool         `json:"cache_hit,omitempty"`
	Errors    []*ErrorInfo `json:"errors,omitempty"`
}

// ErrorInfo holds detailed error information
type ErrorInfo struct {
	Message    string   `json:"message"`
	Module     string   `json:"module,omitempty"`
	Code       string   `json:"code,omitempty"`
	Phase      string   `json:"phase,omitempty"`
	Severity   string   `json:"severity,omitempty"`
	Specifiers []string `json:"specifiers,omitempty"`
}

// ErrorInfoFrom converts a build diagnostic
func ErrorInfoFrom(e errors.CompilerError) *ErrorInfo {
	return &ErrorInfo{
		Message:    e.Message,
		Module:     e.Location.File,
		Code:       e.Code,
		Phase:      e.Phase,
		Severity:   e.Severity.String(),
		Specifiers: e.Specifiers,
	}
}

// NewReloadServer creates a new reload server
func NewReloadServer(collector *metrics.Collector, logger *zap.Logger) *ReloadServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	rs := &ReloadServer{
		connections: make(map[*websocket.Conn]bool),
		broadcast:   make(chan *ReloadMessage, 256),
		register:    make(chan *websocket.Conn),
		unregister:  make(chan *websocket.Conn),
		done:        make(chan struct{}),
		metrics:     collector,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				// Allow localhost only
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	go rs.run()

	return rs
}

// run handles the WebSocket connection lifecycle
func (rs *ReloadServer) run() {
	for {
		select {
		case <-rs.done:
			rs.logger.Debug("reload server stopped")
			return

		case conn := <-rs.register:
			rs.mutex.Lock()
			rs.connections[conn] = true
			n := len(rs.connections)
			rs.mutex.Unlock()
			rs.metrics.SetReloadClients(n)
			rs.logger.Debug("reload client connected", zap.Int("clients", n))

		case conn := <-rs.unregister:
			rs.mutex.Lock()
			if _, ok := rs.connections[conn]; ok {
				delete(rs.connections, conn)
				conn.Close()
			}
			n := len(rs.connections)
			rs.mutex.Unlock()
			rs.metrics.SetReloadClients(n)
			rs.logger.Debug("reload client disconnected", zap.Int("clients", n))

		case message := <-rs.broadcast:
			rs.sendToAll(message)
		}
	}
}

// sendToAll sends a message to all connected clients
func (rs *ReloadServer) sendToAll(message *ReloadMessage) {
	messageJSON, err := json.Marshal(message)
	if err != nil {
		rs.logger.Error("failed to marshal reload message", zap.Error(err))
		return
	}

	// Collect failed connections while holding read lock
	rs.mutex.RLock()
	var failedConns []*websocket.Conn
	for conn := range rs.connections {
		if err := conn.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
			rs.logger.Debug("failed to send reload message", zap.Error(err))
			failedConns = append(failedConns, conn)
		}
	}
	rs.mutex.RUnlock()

	// Remove failed connections with write lock
	if len(failedConns) > 0 {
		rs.mutex.Lock()
		for _, conn := range failedConns {
			if _, ok := rs.connections[conn]; ok {
				conn.Close()
				delete(rs.connections, conn)
			}
		}
		n := len(rs.connections)
		rs.mutex.Unlock()
		rs.metrics.SetReloadClients(n)
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket
func (rs *ReloadServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := rs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rs.logger.Warn("failed to upgrade reload connection", zap.Error(err))
		return
	}

	select {
	case rs.register <- conn:
	case <-rs.done:
		conn.Close()
		return
	}

	// Start reading messages (keepalive and close detection)
	go rs.readMessages(conn)
}

// readMessages reads messages from the client until it goes away
func (rs *ReloadServer) readMessages(conn *websocket.Conn) {
	defer func() {
		select {
		case rs.unregister <- conn:
		case <-rs.done:
		}
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				rs.logger.Debug("reload connection error", zap.Error(err))
			}
			return
		}
	}
}

func (rs *ReloadServer) send(msg *ReloadMessage) {
	msg.Timestamp = time.Now().Unix()
	select {
	case rs.broadcast <- msg:
	case <-rs.done:
	}
}

// NotifyBuilding tells clients a rebuild for files started
func (rs *ReloadServer) NotifyBuilding(files []string) {
	rs.send(&ReloadMessage{Type: MessageBuilding, Files: files})
}

// NotifySuccess tells clients a new bundle is available
func (rs *ReloadServer) NotifySuccess(result *build.BuildResult) {
	rs.send(&ReloadMessage{
		Type:     MessageSuccess,
		BuildID:  result.BuildID,
		Duration: float64(result.Duration.Milliseconds()),
		Modules:  result.Modules,
		CacheHit: result.CacheHit,
	})
}

// NotifyErrors tells clients a build failed
func (rs *ReloadServer) NotifyErrors(buildID string, errs []*ErrorInfo) {
	rs.send(&ReloadMessage{Type: MessageError, BuildID: buildID, Errors: errs})
}

// ConnectionCount returns the number of active connections
func (rs *ReloadServer) ConnectionCount() int {
	rs.mutex.RLock()
	defer rs.mutex.RUnlock()
	return len(rs.connections)
}

// Close closes all connections and stops the server
func (rs *ReloadServer) Close() {
	rs.closeOnce.Do(func() {
		close(rs.done)

		rs.mutex.Lock()
		defer rs.mutex.Unlock()

		for conn := range rs.connections {
			conn.Close()
		}
		rs.connections = make(map[*websocket.Conn]bool)
		rs.metrics.SetReloadClients(0)
	})
}
