package forum

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "naive iso with micros",
			input: "2024-05-01T10:11:12.123456",
			want:  time.Date(2024, 5, 1, 10, 11, 12, 123456000, time.UTC),
		},
		{
			name:  "naive iso without fraction",
			input: "2024-05-01T10:11:12",
			want:  time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC),
		},
		{
			name:  "space separated",
			input: "2024-05-01 10:11:12",
			want:  time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC),
		},
		{
			name:  "rfc3339 with zone",
			input: "2024-05-01T12:11:12+02:00",
			want:  time.Date(2024, 5, 1, 10, 11, 12, 0, time.UTC),
		},
		{
			name:  "empty",
			input: "",
		},
		{
			name:    "garbage",
			input:   "yesterday",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got.Time), "got %v, want %v", got.Time, tt.want)
		})
	}
}

func TestThreadDecode(t *testing.T) {
	var threads []Thread
	body := `[{"id": 2, "title": "Second", "created_at": "2024-05-02T08:00:00.5"},
	          {"id": 1, "title": "First", "created_at": "2024-05-01T08:00:00"}]`
	require.NoError(t, json.Unmarshal([]byte(body), &threads))
	require.Len(t, threads, 2)
	assert.Equal(t, int64(2), threads[0].ID)
	assert.Equal(t, "Second", threads[0].Title)
	assert.Equal(t, 2024, threads[0].CreatedAt.Year())
	assert.Equal(t, 500*time.Millisecond, time.Duration(threads[0].CreatedAt.Nanosecond()))
}

func TestPostDecodeNullTimestamp(t *testing.T) {
	var p Post
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"thread_id":3,"username":"bob","content":"hi","created_at":null}`), &p))
	assert.Equal(t, int64(3), p.ThreadID)
	assert.True(t, p.CreatedAt.IsZero())
}

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(EventJoin, RoomRequest{ThreadID: 7, Username: "alice"})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"join","data":{"thread_id":7,"username":"alice"}}`, string(raw))
}

func TestTimestampRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := rapid.Int64Range(0, 4102444800).Draw(t, "sec")
		nsec := rapid.Int64Range(0, 999999999).Draw(t, "nsec")
		orig := Timestamp{time.Unix(sec, nsec).UTC()}

		raw, err := json.Marshal(orig)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back Timestamp
		if err := json.Unmarshal(raw, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if !back.Equal(orig.Time) {
			t.Fatalf("round trip %v != %v", back.Time, orig.Time)
		}
	})
}

func TestValidator(t *testing.T) {
	v := NewValidator(Limits{Username: 5, ThreadTitle: 10, PostContent: 0})

	tests := []struct {
		name    string
		check   func(string) (string, error)
		input   string
		want    string
		wantTag string
		wantMsg string
	}{
		{name: "username ok", check: v.Username, input: "  alice ", want: "alice"},
		{name: "username blank", check: v.Username, input: "   ", wantTag: "required", wantMsg: "Please enter a username"},
		{name: "username too long", check: v.Username, input: "alicia", wantTag: "max", wantMsg: "Username too long (max 5)"},
		{name: "title ok", check: v.ThreadTitle, input: "Hello", want: "Hello"},
		{name: "title blank", check: v.ThreadTitle, input: "\t\n", wantTag: "required", wantMsg: "Please enter a thread title"},
		{name: "title counts runes", check: v.ThreadTitle, input: "ééééééééé", want: "ééééééééé"},
		{name: "content unlimited", check: v.PostContent, input: strings.Repeat("x", 5000), want: strings.Repeat("x", 5000)},
		{name: "content blank", check: v.PostContent, input: "", wantTag: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.check(tt.input)
			if tt.wantTag == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantTag, verr.Tag)
			assert.Equal(t, tt.wantTag == "required", verr.Missing())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, verr.Message)
			}
		})
	}
}
