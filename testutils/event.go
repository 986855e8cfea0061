package testutils

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/sjson"
)

var (
	eventIDCounter = 0
	eventIDMu      sync.Mutex
)

func generateEventID() string {
	eventIDMu.Lock()
	defer eventIDMu.Unlock()
	eventIDCounter++
	return fmt.Sprintf("$event_%d", eventIDCounter)
}

// EventOpt modifies the JSON of an event under construction.
type EventOpt func(t *testing.T, ev []byte) []byte

// WithTimestamp sets origin_server_ts.
func WithTimestamp(ts time.Time) EventOpt {
	return withPath("origin_server_ts", ts.UnixMilli())
}

// WithPrevContent sets unsigned.prev_content, e.g to make a membership event a change.
func WithPrevContent(content interface{}) EventOpt {
	return withPath("unsigned.prev_content", content)
}

// WithEventID overrides the generated event ID.
func WithEventID(eventID string) EventOpt {
	return withPath("event_id", eventID)
}

func withPath(path string, val interface{}) EventOpt {
	return func(t *testing.T, ev []byte) []byte {
		t.Helper()
		out, err := sjson.SetBytes(ev, path, val)
		if err != nil {
			t.Fatalf("failed to set %s on event: %s", path, err)
		}
		return out
	}
}

func NewStateEvent(t *testing.T, evType, stateKey, sender string, content interface{}, opts ...EventOpt) json.RawMessage {
	t.Helper()
	e := struct {
		Type     string      `json:"type"`
		StateKey string      `json:"state_key"`
		Sender   string      `json:"sender"`
		Content  interface{} `json:"content"`
		EventID  string      `json:"event_id"`
	}{
		Type:     evType,
		StateKey: stateKey,
		Sender:   sender,
		Content:  content,
		EventID:  generateEventID(),
	}
	j, err := json.Marshal(&e)
	if err != nil {
		t.Fatalf("failed to make event JSON: %s", err)
	}
	return apply(t, j, opts)
}

func NewEvent(t *testing.T, evType, sender string, content interface{}, opts ...EventOpt) json.RawMessage {
	t.Helper()
	e := struct {
		Type    string      `json:"type"`
		Sender  string      `json:"sender"`
		Content interface{} `json:"content"`
		EventID string      `json:"event_id"`
	}{
		Type:    evType,
		Sender:  sender,
		Content: content,
		EventID: generateEventID(),
	}
	j, err := json.Marshal(&e)
	if err != nil {
		t.Fatalf("failed to make event JSON: %s", err)
	}
	return apply(t, j, opts)
}

func apply(t *testing.T, ev []byte, opts []EventOpt) json.RawMessage {
	t.Helper()
	for _, opt := range opts {
		ev = opt(t, ev)
	}
	return ev
}
