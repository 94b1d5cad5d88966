package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// EventKind tells which payload of an Event is set
type EventKind int

const (
	EventPost EventKind = iota
	EventStatus
)

// Event is one inbound realtime notification
type Event struct {
	Kind   EventKind
	Post   forum.Post
	Notice forum.StatusNotice
}

// ErrChannelClosed is returned when signalling on a closed channel
var ErrChannelClosed = errors.New("realtime channel closed")

// ErrSignalQueueFull is returned when too many signals are waiting to be sent
var ErrSignalQueueFull = errors.New("realtime signal queue full")

// RealtimeURL derives the plain websocket endpoint for namespace from the
// API base URL: http://host:5000 + "/chat" -> ws://host:5000/ws/chat.
func RealtimeURL(baseURL, namespace string) (string, error) {
	u, err := websocketBase(baseURL)
	if err != nil {
		return "", err
	}
	ns := "/" + strings.Trim(namespace, "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/ws" + ns
	return u.String(), nil
}

// websocketBase maps the API base URL onto the ws or wss scheme
func websocketBase(baseURL string) (*url.URL, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid server url %q", baseURL)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, errors.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Errorf("server url %q has no host", baseURL)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Channel is the realtime push connection to one chat namespace. Reads and
// writes run on their own goroutines; the UI consumes Events and Errors.
type Channel struct {
	addr   string
	dialer *websocket.Dialer
	header http.Header

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	proto    wireProtocol
	outgoing chan forum.Envelope
	control  chan []byte
	events   chan Event
	errors   chan error
	shutdown chan struct{}
	wg       sync.WaitGroup

	writeTimeout time.Duration
	logger       zerolog.Logger
	metrics      *Metrics
}

// NewChannel creates an unconnected channel for the websocket at addr
func NewChannel(addr string) *Channel {
	return &Channel{
		addr:         addr,
		dialer:       websocket.DefaultDialer,
		header:       http.Header{},
		proto:        plainProtocol{},
		outgoing:     make(chan forum.Envelope, 100),
		control:      make(chan []byte, 8),
		events:       make(chan Event, 100),
		errors:       make(chan error, 10),
		shutdown:     make(chan struct{}),
		writeTimeout: 10 * time.Second,
		logger:       zerolog.Nop(),
	}
}

// UseSocketIO switches the framing to Socket.IO on namespace. The address
// must then be a Socket.IO endpoint, see SocketIOURL. Call before Connect.
func (c *Channel) UseSocketIO(namespace string) {
	c.proto = newSocketIOProtocol(namespace)
}

// SetLogger sets a logger for debugging channel events
func (c *Channel) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// SetMetrics attaches Prometheus collectors
func (c *Channel) SetMetrics(m *Metrics) {
	c.metrics = m
}

// GetAddress returns the websocket URL
func (c *Channel) GetAddress() string {
	return c.addr
}

// IsConnected returns whether the websocket is up
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Connect dials the websocket and starts the read and write loops
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	if c.connected {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	c.logger.Info().Str("addr", c.addr).Msg("connecting realtime channel")

	conn, resp, err := c.dialer.DialContext(ctx, c.addr, c.header)
	if err != nil {
		if resp != nil {
			return errors.Wrapf(err, "dial %s (status %d)", c.addr, resp.StatusCode)
		}
		return errors.Wrapf(err, "dial %s", c.addr)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if err := c.proto.handshake(conn, deadline); err != nil {
		conn.Close()
		return errors.Wrapf(err, "handshake %s", c.addr)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrChannelClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.wg.Add(2)
	go c.readLoop(conn)
	go c.writeLoop(conn)

	c.logger.Info().Str("addr", c.addr).Msg("realtime channel connected")
	return nil
}

// Join asks the server to add us to the thread's room
func (c *Channel) Join(threadID int64, username string) error {
	return c.signal(forum.EventJoin, forum.RoomRequest{ThreadID: threadID, Username: username})
}

// Leave asks the server to remove us from the thread's room
func (c *Channel) Leave(threadID int64, username string) error {
	return c.signal(forum.EventLeave, forum.RoomRequest{ThreadID: threadID, Username: username})
}

func (c *Channel) signal(event string, payload interface{}) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrChannelClosed
	}

	env, err := forum.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	select {
	case c.outgoing <- env:
		c.metrics.Signal(event)
		return nil
	default:
		return ErrSignalQueueFull
	}
}

// Events returns inbound notifications
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Errors returns transport failures. After an error the channel stays down.
func (c *Channel) Errors() <-chan error {
	return c.errors
}

// Close shuts the connection down and waits for the loops to exit
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.connected = false
	c.mu.Unlock()

	close(c.shutdown)

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}

	c.wg.Wait()
	// readLoop was the only sender
	close(c.events)
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		if silence := c.proto.readTimeout(); silence > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(silence)); err != nil {
				c.handleDisconnect(err)
				return
			}
		}
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		in, err := c.proto.decode(msg)
		if err != nil {
			c.logger.Warn().Err(err).Msg("ignoring realtime frame")
			continue
		}
		if in.closed {
			c.handleDisconnect(errors.New("server closed the session"))
			return
		}
		if in.reply != nil {
			select {
			case c.control <- in.reply:
			default:
				c.logger.Warn().Msg("realtime control queue full")
			}
		}
		if in.env == nil {
			continue
		}

		env := *in.env
		ev, err := decodeEvent(env)
		if err != nil {
			c.logger.Warn().Err(err).Str("event", env.Event).Msg("ignoring realtime frame")
			continue
		}
		c.metrics.PushEvent(env.Event)
		c.logger.Debug().Str("event", env.Event).Msg("realtime event")

		select {
		case c.events <- ev:
		case <-c.shutdown:
			return
		}
	}
}

func (c *Channel) writeLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		var frame []byte
		event := ""
		select {
		case env := <-c.outgoing:
			b, err := c.proto.encode(env)
			if err != nil {
				c.logger.Error().Err(err).Str("event", env.Event).Msg("dropping realtime signal")
				continue
			}
			frame, event = b, env.Event
		case frame = <-c.control:
		case <-c.shutdown:
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			c.handleDisconnect(err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			c.handleDisconnect(err)
			return
		}
		if event != "" {
			c.logger.Debug().Str("event", event).Msg("realtime signal sent")
		}
	}
}

// handleDisconnect records a transport failure once; a failure caused by
// Close is not reported.
func (c *Channel) handleDisconnect(err error) {
	c.mu.Lock()
	wasConnected := c.connected
	closed := c.closed
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
	}
	c.mu.Unlock()

	if closed || !wasConnected {
		return
	}

	c.logger.Warn().Err(err).Msg("realtime channel lost")
	select {
	case c.errors <- errors.Wrap(err, "realtime channel lost"):
	default:
	}
}

var errUnknownEvent = errors.New("unknown event")

func decodeEvent(env forum.Envelope) (Event, error) {
	switch env.Event {
	case forum.EventNewPost:
		var p forum.Post
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, errors.Wrap(err, "decode new_post")
		}
		return Event{Kind: EventPost, Post: p}, nil
	case forum.EventStatus:
		var n forum.StatusNotice
		if err := json.Unmarshal(env.Data, &n); err != nil {
			return Event{}, errors.Wrap(err, "decode status")
		}
		return Event{Kind: EventStatus, Notice: n}, nil
	default:
		return Event{}, errUnknownEvent
	}
}
