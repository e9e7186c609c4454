package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/web3-frozen/citrea-watch/internal/metrics"
	"github.com/web3-frozen/citrea-watch/internal/monitor"
	"github.com/web3-frozen/citrea-watch/internal/view"
)

// Stream message types.
const (
	MessageOverview = "overview"
	MessageBridge   = "bridge"
	MessageGas      = "gas"
	MessagePing     = "ping"
	MessageError    = "error"
)

const (
	writeWait = 10 * time.Second
	// pongWait bounds how long a silent client stays connected. Control
	// pings go out at half of it and every pong extends the deadline.
	pongWait = 60 * time.Second
	// maxMessageSize caps client frames; the only valid one is a small
	// period action.
	maxMessageSize = 1024
	// maxNotices caps queued error replies for a client that floods bad
	// frames without reading.
	maxNotices = 8
)

var viewTypes = []string{MessageOverview, MessageBridge, MessageGas}

// feedViews lists the views derived from each feed.
var feedViews = map[string][]string{
	monitor.FeedGlobalTvl:        {MessageOverview, MessageBridge},
	monitor.FeedTvlHistory:       {MessageOverview},
	monitor.FeedBridgeSummary:    {MessageBridge},
	monitor.FeedBridgeTimeseries: {MessageBridge},
	monitor.FeedGas:              {MessageBridge, MessageGas},
	monitor.FeedExplorerSummary:  {MessageOverview, MessageGas},
}

// ServerMessage is one frame pushed to stream clients.
type ServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ClientMessage is the only frame clients send:
// {"action": "period", "period": "7D"} selects the overview TVL window.
type ClientMessage struct {
	Action string `json:"action"`
	Period string `json:"period"`
}

// Stream pushes dashboard views over WebSocket. Every connection gets the
// three views on connect, a fresh copy of each view whose feeds changed,
// all three after any preference change, and a ping every refresh
// interval.
type Stream struct {
	dashboard *Dashboard
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	pingEvery func() time.Duration
	pongWait  time.Duration
	conns     *xsync.Map[string, *websocket.Conn]
}

// NewStream accepts upgrades from the given origins, using the same
// patterns as the CORS middleware. No origins allows any.
func NewStream(d *Dashboard, origins []string, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		dashboard: d,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), origins)
			},
		},
		pingEvery: d.settings.RefreshInterval,
		pongWait:  pongWait,
		conns:     xsync.NewMap[string, *websocket.Conn](),
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	origin = strings.ToLower(origin)
	for _, a := range allowed {
		a = strings.ToLower(a)
		if a == "*" || a == origin {
			return true
		}
		if before, after, ok := strings.Cut(a, "*"); ok &&
			len(origin) >= len(before)+len(after) &&
			strings.HasPrefix(origin, before) && strings.HasSuffix(origin, after) {
			return true
		}
	}
	return false
}

// Clients reports the number of open connections.
func (s *Stream) Clients() int {
	return s.conns.Size()
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown.
func (s *Stream) Close() {
	s.conns.Range(func(_ string, conn *websocket.Conn) bool {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return true
	})
}

// streamConn is one client. Changes only mark views dirty; the writer
// goroutine renders and sends them, so a slow client never blocks a feed.
type streamConn struct {
	id   string
	conn *websocket.Conn
	wake chan struct{}

	mu      sync.Mutex
	dirty   map[string]bool
	notices []ServerMessage
	period  view.Period
}

func (c *streamConn) mark(types ...string) {
	c.mu.Lock()
	for _, t := range types {
		c.dirty[t] = true
	}
	c.mu.Unlock()
	c.signal()
}

func (c *streamConn) notice(msg ServerMessage) {
	c.mu.Lock()
	if len(c.notices) >= maxNotices {
		c.mu.Unlock()
		return
	}
	c.notices = append(c.notices, msg)
	c.mu.Unlock()
	c.signal()
}

func (c *streamConn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *streamConn) setPeriod(p view.Period) {
	c.mu.Lock()
	c.period = p
	c.dirty[MessageOverview] = true
	c.mu.Unlock()
	c.signal()
}

// take drains pending work in a fixed view order.
func (c *streamConn) take() ([]string, []ServerMessage, view.Period) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []string
	for _, t := range viewTypes {
		if c.dirty[t] {
			types = append(types, t)
		}
	}
	clear(c.dirty)
	notices := c.notices
	c.notices = nil
	return types, notices, c.period
}

func (c *streamConn) send(msg ServerMessage) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return err
	}
	metrics.StreamMessagesTotal.WithLabelValues(msg.Type).Inc()
	return nil
}

func (s *Stream) Handle(w http.ResponseWriter, r *http.Request) {
	if !s.dashboard.settings.Mounted() {
		writeError(w, http.StatusServiceUnavailable, "settings not mounted")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &streamConn{
		id:     uuid.NewString(),
		conn:   conn,
		wake:   make(chan struct{}, 1),
		dirty:  make(map[string]bool, len(viewTypes)),
		period: view.PeriodAll,
	}
	logger := s.logger.With(zap.String("client_id", c.id), zap.String("remote_addr", r.RemoteAddr))

	s.conns.Store(c.id, conn)
	metrics.StreamClients.Inc()
	logger.Info("stream client connected")
	defer func() {
		s.conns.Delete(c.id)
		metrics.StreamClients.Dec()
		_ = conn.Close()
		logger.Info("stream client disconnected")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mark(viewTypes...)
	unsubscribeFeeds := s.dashboard.engine.OnChange(func(feed string) {
		c.mark(feedViews[feed]...)
	})
	defer unsubscribeFeeds()
	unsubscribeSettings := s.dashboard.settings.OnChange(func() {
		c.mark(viewTypes...)
	})
	defer unsubscribeSettings()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in stream writer",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())))
				_ = conn.Close()
			}
		}()
		s.writeLoop(ctx, c, logger)
	}()

	// Blocks until the client goes away or the writer closes the connection.
	s.readLoop(c, logger)
	cancel()
	wg.Wait()
}

func (s *Stream) writeLoop(ctx context.Context, c *streamConn, logger *zap.Logger) {
	interval := s.pingEvery()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	keepalive := time.NewTicker(s.pongWait / 2)
	defer keepalive.Stop()

	fail := func(err error) {
		logger.Debug("stream write failed", zap.Error(err))
		_ = c.conn.Close()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			types, notices, period := c.take()
			for _, msg := range notices {
				if err := c.send(msg); err != nil {
					fail(err)
					return
				}
			}
			for _, t := range types {
				if err := c.send(ServerMessage{Type: t, Payload: s.render(t, period)}); err != nil {
					fail(err)
					return
				}
			}
		case <-ticker.C:
			ping := ServerMessage{Type: MessagePing, Payload: map[string]int64{"timestamp": time.Now().UnixMilli()}}
			if err := c.send(ping); err != nil {
				fail(err)
				return
			}
			if next := s.pingEvery(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		case <-keepalive.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				fail(err)
				return
			}
		}
	}
}

func (s *Stream) render(t string, period view.Period) any {
	switch t {
	case MessageOverview:
		return s.dashboard.overview(period)
	case MessageBridge:
		return s.dashboard.bridge()
	default:
		return s.dashboard.gas()
	}
}

func (s *Stream) readLoop(c *streamConn, logger *zap.Logger) {
	c.conn.SetReadLimit(maxMessageSize)
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	}
	if err := extend(); err != nil {
		logger.Debug("set read deadline failed", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn("stream read error", zap.Error(err))
			}
			return
		}
		if err := extend(); err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.notice(errorMessage("invalid JSON message"))
			continue
		}
		switch msg.Action {
		case "period":
			p, err := view.ParsePeriod(msg.Period)
			if err != nil {
				c.notice(errorMessage(err.Error()))
				continue
			}
			c.setPeriod(p)
		default:
			c.notice(errorMessage("unknown action: " + msg.Action))
		}
	}
}

func errorMessage(text string) ServerMessage {
	return ServerMessage{Type: MessageError, Payload: map[string]string{"message": text}}
}
