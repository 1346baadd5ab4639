package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/presence"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Observer receives realtime counters. *metrics.Collector satisfies it.
type Observer interface {
	SetOnline(n int)
	EventRelayed(event string)
	EventDropped(event string)
	HandshakeRejected()
}

type nopObserver struct{}

func (nopObserver) SetOnline(int) {}
func (nopObserver) EventRelayed(string) {}
func (nopObserver) EventDropped(string) {}
func (nopObserver) HandshakeRejected() {}

// Options tunes buffers, rate limits and keepalive
type Options struct {
	SendBuffer        int
	MessagesPerMinute int
	PingInterval      time.Duration
	PongWait          time.Duration
	AllowedOrigins    []string
}

func (o *Options) setDefaults() {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MessagesPerMinute <= 0 {
		o.MessagesPerMinute = 120
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
}

// Client is one live connection. Outbound frames are queued on send and
// written by a single writer goroutine, so delivery order per connection is
// the order of enqueue.
type Client struct {
	ID     string
	UserID string
	Role   auth.Role

	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *middleware.WebSocketLimiter
}

func (c *Client) close() {
	c.once.Do(func() { close(c.done) })
}

// Router authenticates connections, tracks presence and relays
// point-to-point events between online users
type Router struct {
	authn    *Authenticator
	presence *presence.Registry[*Client]
	observer Observer
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewRouter creates a router. observer may be nil.
func NewRouter(authn *Authenticator, observer Observer, logger *zap.Logger, opts Options) *Router {
	opts.setDefaults()
	if observer == nil {
		observer = nopObserver{}
	}

	r := &Router{
		authn:    authn,
		presence: presence.NewRegistry[*Client](),
		observer: observer,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     r.checkOrigin,
	}
	return r
}

func (r *Router) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" || len(r.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(r.opts.AllowedOrigins, "*") || slices.Contains(r.opts.AllowedOrigins, origin)
}

// ServeWS authenticates the handshake, upgrades and runs the connection
// until it closes. Unauthenticated requests get 401 and no socket.
func (r *Router) ServeWS(c *gin.Context) {
	identity, err := r.authn.Authenticate(c.Request.Context(), TokenFromRequest(c.Request))
	if err != nil {
		r.observer.HandshakeRejected()
		if errors.Is(err, auth.ErrUnauthorized) {
			r.logger.Debug("realtime handshake rejected", zap.Error(err), zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error"})
			return
		}
		r.logger.Error("realtime handshake failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:      uuid.NewString(),
		UserID:  identity.UserID,
		Role:    identity.Role,
		conn:    conn,
		send:    make(chan []byte, r.opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: middleware.NewWebSocketLimiter(r.opts.MessagesPerMinute),
	}

	r.connect(client)
	go r.writePump(client)
	r.readPump(client)
}

func (r *Router) connect(client *Client) {
	if prev, replaced := r.presence.Register(client.UserID, client); replaced {
		r.logger.Info("user reconnected, previous connection orphaned",
			zap.String("user_id", client.UserID),
			zap.String("previous_conn", prev.ID),
			zap.String("conn", client.ID),
		)
	}
	r.logger.Info("user connected",
		zap.String("user_id", client.UserID),
		zap.String("role", string(client.Role)),
		zap.String("conn", client.ID),
	)
	r.broadcastOnline()
}

func (r *Router) disconnect(client *Client) {
	client.close()
	// Not a plain Unregister: a displaced socket closing must leave its replacement online
	if r.presence.UnregisterIf(client.UserID, client) {
		r.logger.Info("user disconnected", zap.String("user_id", client.UserID), zap.String("conn", client.ID))
		r.broadcastOnline()
		return
	}
	r.logger.Debug("orphaned connection closed", zap.String("user_id", client.UserID), zap.String("conn", client.ID))
}

func (r *Router) broadcastOnline() {
	online := r.presence.Snapshot()
	r.observer.SetOnline(len(online))

	data, err := json.Marshal(Event{Name: EventUsersOnline, Data: online})
	if err != nil {
		r.logger.Error("failed to encode presence snapshot", zap.Error(err))
		return
	}
	r.presence.Each(func(_ string, c *Client) {
		r.enqueue(c, EventUsersOnline, data)
	})
}

func (r *Router) readPump(client *Client) {
	defer r.disconnect(client)

	conn := client.conn
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(r.now().Add(r.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(r.now().Add(r.opts.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.logger.Debug("websocket read error", zap.String("user_id", client.UserID), zap.Error(err))
			}
			return
		}

		if !client.limiter.Allow() {
			r.sendError(client, "Rate limit exceeded")
			continue
		}
		r.dispatch(client, data)
	}
}

func (r *Router) writePump(client *Client) {
	ticker := time.NewTicker(r.opts.PingInterval)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data := <-client.send:
			client.conn.SetWriteDeadline(r.now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				client.close()
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(r.now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.close()
				return
			}
		case <-client.done:
			client.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), r.now().Add(writeWait))
			return
		}
	}
}

func (r *Router) dispatch(client *Client, data []byte) {
	var in inboundEvent
	if err := json.Unmarshal(data, &in); err != nil || in.Name == "" {
		r.sendError(client, "Malformed event")
		return
	}

	switch in.Name {
	case EventMessageSend:
		var p messageSend
		if err := json.Unmarshal(in.Data, &p); err != nil || p.ReceiverID == "" {
			r.sendError(client, errReceiverRequired.Error())
			return
		}
		r.Deliver(p.ReceiverID, Event{
			Name: EventMessageReceive,
			Data: MessageReceive{SenderID: client.UserID, Message: p.Message, Timestamp: r.now()},
		})

	case EventTypingStart, EventTypingStop:
		receiverID, err := parseReceiverID(in.Data)
		if err != nil {
			r.sendError(client, err.Error())
			return
		}
		r.Deliver(receiverID, Event{
			Name: EventTypingIndicator,
			Data: TypingIndicator{UserID: client.UserID, IsTyping: in.Name == EventTypingStart},
		})

	default:
		r.sendError(client, "Unknown event: "+in.Name)
	}
}

// Deliver sends ev to receiverID's live connection. It reports false and
// drops the event when the receiver is offline or its queue is full.
func (r *Router) Deliver(receiverID string, ev Event) bool {
	client, ok := r.presence.Lookup(receiverID)
	if !ok {
		r.observer.EventDropped(ev.Name)
		return false
	}

	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("failed to encode event", zap.String("event", ev.Name), zap.Error(err))
		return false
	}
	return r.enqueue(client, ev.Name, data)
}

// NotifyMessage pushes a persisted chat message as message:receive
func (r *Router) NotifyMessage(receiverID, senderID, content string, at time.Time) bool {
	return r.Deliver(receiverID, Event{
		Name: EventMessageReceive,
		Data: MessageReceive{SenderID: senderID, Message: content, Timestamp: at},
	})
}

// Online returns the ids of users with a live connection
func (r *Router) Online() []string {
	return r.presence.Snapshot()
}

// Disconnect removes userID from presence and closes its connection.
// It reports whether the user was online.
func (r *Router) Disconnect(userID string) bool {
	client, ok := r.presence.Unregister(userID)
	if !ok {
		return false
	}
	client.close()
	r.logger.Info("user disconnected by server", zap.String("user_id", userID), zap.String("conn", client.ID))
	r.broadcastOnline()
	return true
}

// OnlineCount returns the number of users with a live connection
func (r *Router) OnlineCount() int {
	return r.presence.Len()
}

// Close ends every live connection
func (r *Router) Close() {
	r.presence.Each(func(_ string, c *Client) { c.close() })
}

func (r *Router) sendError(client *Client, msg string) {
	data, err := json.Marshal(Event{Name: EventError, Data: errorPayload{Message: msg}})
	if err != nil {
		return
	}
	r.enqueue(client, EventError, data)
}

// enqueue never blocks: a full queue drops the frame for that client only
func (r *Router) enqueue(client *Client, name string, data []byte) bool {
	select {
	case <-client.done:
		r.observer.EventDropped(name)
		return false
	default:
	}

	select {
	case client.send <- data:
		r.observer.EventRelayed(name)
		return true
	default:
		r.observer.EventDropped(name)
		r.logger.Debug("send queue full, event dropped",
			zap.String("user_id", client.UserID),
			zap.String("event", name),
		)
		return false
	}
}
