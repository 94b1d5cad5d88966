package client

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/aeolun/forumchat/pkg/forum"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Realtime transports
const (
	// TransportSocketIO speaks Engine.IO v4 / Socket.IO v5 over a websocket,
	// as served by Flask-SocketIO and other Socket.IO servers
	TransportSocketIO = "socketio"
	// TransportWebSocket sends bare {"event","data"} JSON frames
	TransportWebSocket = "websocket"
)

// SocketIOURL derives the Socket.IO websocket endpoint from the API base
// URL: http://host:5000 -> ws://host:5000/socket.io/?EIO=4&transport=websocket.
// The namespace travels inside the protocol, not in the URL.
func SocketIOURL(baseURL string) (string, error) {
	u, err := websocketBase(baseURL)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	u.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	return u.String(), nil
}

// wireProtocol frames envelopes on the websocket
type wireProtocol interface {
	// handshake runs after dialing, before the read and write loops start
	handshake(conn *websocket.Conn, deadline time.Time) error
	encode(env forum.Envelope) ([]byte, error)
	decode(msg []byte) (inbound, error)
	// readTimeout is how long the peer may stay silent; zero means forever
	readTimeout() time.Duration
}

// inbound is one decoded websocket message: an event, a frame to send back,
// a close from the server, or nothing of interest
type inbound struct {
	env    *forum.Envelope
	reply  []byte
	closed bool
}

// plainProtocol sends each envelope as one JSON text frame
type plainProtocol struct{}

func (plainProtocol) handshake(*websocket.Conn, time.Time) error { return nil }

func (plainProtocol) encode(env forum.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (plainProtocol) decode(msg []byte) (inbound, error) {
	var env forum.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return inbound{}, errors.Wrap(err, "decode frame")
	}
	return inbound{env: &env}, nil
}

func (plainProtocol) readTimeout() time.Duration { return 0 }

// Engine.IO packet types
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO packet types
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// eioHandshake is the payload of the Engine.IO open packet
type eioHandshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"` // milliseconds
	PingTimeout  int    `json:"pingTimeout"`  // milliseconds
}

// socketIOProtocol speaks Socket.IO on one namespace
type socketIOProtocol struct {
	namespace string
	silence   time.Duration // set from the open packet
}

func newSocketIOProtocol(namespace string) *socketIOProtocol {
	return &socketIOProtocol{namespace: "/" + strings.Trim(namespace, "/")}
}

// nsPrefix is what precedes the data of a packet on our namespace
func (p *socketIOProtocol) nsPrefix() string {
	if p.namespace == "/" {
		return ""
	}
	return p.namespace + ","
}

func (p *socketIOProtocol) handshake(conn *websocket.Conn, deadline time.Time) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return errors.Wrap(err, "set handshake deadline")
	}
	defer conn.SetReadDeadline(time.Time{})

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return errors.Wrap(err, "read engine.io open packet")
	}
	if len(msg) == 0 || msg[0] != eioOpen {
		return errors.Errorf("expected engine.io open packet, got %q", truncateFrame(msg))
	}
	var hs eioHandshake
	if err := json.Unmarshal(msg[1:], &hs); err != nil {
		return errors.Wrap(err, "decode engine.io open packet")
	}
	if hs.PingInterval > 0 {
		p.silence = time.Duration(hs.PingInterval+hs.PingTimeout) * time.Millisecond
	}

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "set handshake deadline")
	}
	connect := string(eioMessage) + string(sioConnect) + p.nsPrefix()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(connect)); err != nil {
		return errors.Wrapf(err, "connect namespace %s", p.namespace)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrapf(err, "wait for namespace %s", p.namespace)
		}
		if len(msg) == 0 {
			continue
		}
		switch msg[0] {
		case eioPing:
			if err := conn.WriteMessage(websocket.TextMessage, pongFor(msg)); err != nil {
				return errors.Wrap(err, "answer ping")
			}
			continue
		case eioClose:
			return errors.New("server closed the connection during the handshake")
		case eioMessage:
		default:
			continue
		}

		typ, ns, _, err := splitSocketPacket(msg[1:])
		if err != nil || ns != p.namespace {
			continue
		}
		switch typ {
		case sioConnect:
			return conn.SetWriteDeadline(time.Time{})
		case sioConnectError:
			return errors.Errorf("namespace %s refused: %s", p.namespace, truncateFrame(msg))
		}
	}
}

func (p *socketIOProtocol) encode(env forum.Envelope) ([]byte, error) {
	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	args, err := json.Marshal([]interface{}{env.Event, data})
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", env.Event)
	}
	frame := string(eioMessage) + string(sioEvent) + p.nsPrefix() + string(args)
	return []byte(frame), nil
}

func (p *socketIOProtocol) decode(msg []byte) (inbound, error) {
	if len(msg) == 0 {
		return inbound{}, nil
	}
	switch msg[0] {
	case eioPing:
		return inbound{reply: pongFor(msg)}, nil
	case eioClose:
		return inbound{closed: true}, nil
	case eioMessage:
	case eioPong, eioNoop, eioOpen:
		return inbound{}, nil
	default:
		return inbound{}, errors.Errorf("unknown engine.io packet %q", truncateFrame(msg))
	}

	typ, ns, data, err := splitSocketPacket(msg[1:])
	if err != nil {
		return inbound{}, err
	}
	if ns != p.namespace {
		return inbound{}, nil
	}

	switch typ {
	case sioDisconnect:
		return inbound{closed: true}, nil
	case sioEvent:
		var args []json.RawMessage
		if err := json.Unmarshal(data, &args); err != nil {
			return inbound{}, errors.Wrap(err, "decode socket.io event")
		}
		if len(args) == 0 {
			return inbound{}, errors.New("socket.io event without a name")
		}
		env := forum.Envelope{Data: json.RawMessage("null")}
		if err := json.Unmarshal(args[0], &env.Event); err != nil {
			return inbound{}, errors.Wrap(err, "decode socket.io event name")
		}
		if len(args) > 1 {
			env.Data = args[1]
		}
		return inbound{env: &env}, nil
	}
	return inbound{}, nil
}

func (p *socketIOProtocol) readTimeout() time.Duration { return p.silence }

// splitSocketPacket parses "<type>[/ns,][ackid]<data>"
func splitSocketPacket(pkt []byte) (typ byte, namespace string, data []byte, err error) {
	if len(pkt) == 0 {
		return 0, "", nil, errors.New("empty socket.io packet")
	}
	typ = pkt[0]
	rest := pkt[1:]

	namespace = "/"
	if len(rest) > 0 && rest[0] == '/' {
		end := strings.IndexByte(string(rest), ',')
		if end < 0 {
			return typ, string(rest), nil, nil
		}
		namespace = string(rest[:end])
		rest = rest[end+1:]
	}

	// Ack ids are not used by this client
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	return typ, namespace, rest[i:], nil
}

// pongFor answers an Engine.IO ping, echoing its payload
func pongFor(ping []byte) []byte {
	return append([]byte{eioPong}, ping[1:]...)
}

func truncateFrame(msg []byte) string {
	if len(msg) > 64 {
		return string(msg[:64]) + "..."
	}
	return string(msg)
}
