package sync3

import (
	"encoding/json"

	"github.com/matrix-org/sliding-sync-client/internal"
)

// Room is the data the server sent about one room in one response. Any subset of fields may be
// present. Scalars the server did not send are unset Optionals, never zero values, so an update
// can be applied on top of what is already known about the room.
type Room struct {
	RoomID            string                    `json:"-"`
	Name              internal.Optional[string] `json:"name"`
	RequiredState     []json.RawMessage         `json:"required_state,omitempty"`
	Timeline          []json.RawMessage         `json:"timeline,omitempty"`
	InviteState       []json.RawMessage         `json:"invite_state,omitempty"`
	NotificationCount internal.Optional[int]    `json:"notification_count"`
	HighlightCount    internal.Optional[int]    `json:"highlight_count"`
	Initial           bool                      `json:"initial,omitempty"`
	IsDM              bool                      `json:"is_dm,omitempty"`
	JoinedCount       int                       `json:"joined_count,omitempty"`
	InvitedCount      int                       `json:"invited_count,omitempty"`
	PrevBatch         string                    `json:"prev_batch,omitempty"`
	NumLive           int                       `json:"num_live,omitempty"`
}
