package internal

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Event types the client looks inside of.
const (
	EventTypeMember    = "m.room.member"
	EventTypeMessage   = "m.room.message"
	EventTypeName      = "m.room.name"
	EventTypeTopic     = "m.room.topic"
	EventTypeAvatar    = "m.room.avatar"
	EventTypeTombstone = "m.room.tombstone"
	EventTypeCreate    = "m.room.create"
	EventTypeEncrypted = "m.room.encrypted"
)

// Event is a read-only view over the fields of an event JSON which the client uses. The content
// is left as a gjson.Result so callers only pay for the keys they read.
type Event struct {
	ID             string
	Type           string
	Sender         string
	StateKey       *string
	OriginServerTS int64
	Content        gjson.Result
	PrevContent    gjson.Result
}

// ParseEvent extracts the commonly used fields of an event. Malformed JSON produces an Event
// with empty fields rather than an error.
func ParseEvent(ev json.RawMessage) Event {
	parsed := gjson.ParseBytes(ev)
	e := Event{
		ID:             parsed.Get("event_id").Str,
		Type:           parsed.Get("type").Str,
		Sender:         parsed.Get("sender").Str,
		OriginServerTS: parsed.Get("origin_server_ts").Int(),
		Content:        parsed.Get("content"),
		PrevContent:    parsed.Get("unsigned.prev_content"),
	}
	if sk := parsed.Get("state_key"); sk.Exists() && sk.Type == gjson.String {
		stateKey := sk.Str
		e.StateKey = &stateKey
	}
	return e
}

// IsMembershipChange returns true if the membership event changed the membership, as opposed to
// a display name or avatar change. A missing membership counts as "leave".
func IsMembershipChange(ev Event) bool {
	prevMembership := "leave"
	if pm := ev.PrevContent.Get("membership").Str; pm != "" {
		prevMembership = pm
	}
	currMembership := "leave"
	if cm := ev.Content.Get("membership").Str; cm != "" {
		currMembership = cm
	}
	return prevMembership != currMembership
}
