// Package forum holds the wire types shared by the forum HTTP API and the
// realtime chat channel.
package forum

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Thread is a discussion thread. ID and CreatedAt are assigned by the server.
type Thread struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
}

// Post is a single message inside a thread.
type Post struct {
	ID        int64     `json:"id"`
	ThreadID  int64     `json:"thread_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

// StatusNotice is a transient room notice such as "alice joined thread 3".
type StatusNotice struct {
	Msg string `json:"msg"`
}

// RoomRequest is the payload of the join and leave signals.
type RoomRequest struct {
	ThreadID int64  `json:"thread_id"`
	Username string `json:"username"`
}

// CreateThreadRequest is the body of a create-thread call.
type CreateThreadRequest struct {
	Title string `json:"title"`
}

// CreatePostRequest is the body of a create-post call.
type CreatePostRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// ErrorResponse is what the server returns with a non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is returned by the delete and wipe calls.
type StatusResponse struct {
	Status string `json:"status"`
}

// Realtime event names.
const (
	EventJoin    = "join"
	EventLeave   = "leave"
	EventNewPost = "new_post"
	EventStatus  = "status"
)

// Envelope is one realtime frame: an event name and its JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into an envelope for event.
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", event)
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Timestamp accepts both RFC 3339 and the zone-less ISO form the forum
// server emits (Python's datetime.isoformat on a UTC value).
type Timestamp struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses s; zone-less values are taken as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{t}, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{t}, nil
		}
	}
	return Timestamp{}, errors.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "timestamp must be a string")
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
