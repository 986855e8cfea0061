package store

import (
	"encoding/json"

	"github.com/matrix-org/sliding-sync-client/internal"
)

// DefaultObsoleteReason is shown for tombstoned rooms whose tombstone has no body.
const DefaultObsoleteReason = internal.EventTypeTombstone

// project derives the avatar, topic and obsolete marker from a batch of required state. The batch
// holds the current value for each type, so the last occurrence of a type wins. Types missing
// from the batch leave the room untouched. The obsolete marker is never cleared.
func project(room *Room, requiredState []json.RawMessage) {
	var avatar, topic, obsolete internal.Optional[string]
	for _, ev := range requiredState {
		parsed := internal.ParseEvent(ev)
		switch parsed.Type {
		case internal.EventTypeAvatar:
			avatar = internal.Some(parsed.Content.Get("url").Str)
		case internal.EventTypeTopic:
			topic = internal.Some(parsed.Content.Get("topic").Str)
		case internal.EventTypeTombstone:
			reason := parsed.Content.Get("body").Str
			if reason == "" {
				reason = DefaultObsoleteReason
			}
			obsolete = internal.Some(reason)
		}
	}
	if avatar.Set {
		room.Avatar = avatar
	}
	if topic.Set {
		room.Topic = topic
	}
	if obsolete.Set {
		room.Obsolete = obsolete
	}
}
