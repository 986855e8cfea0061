package sync3

import (
	"bytes"
	"encoding/json"
)

var (
	SortByNotificationLevel = "by_notification_level"
	SortByName              = "by_name"
	SortByRecency           = "by_recency"
	DefaultSort             = []string{SortByNotificationLevel, SortByRecency, SortByName}

	DefaultTimeoutMSecs = 20 * 1000 // 20s
)

// Request is the body of a sliding sync request, built by the client from its lists.
type Request struct {
	Lists             []RequestList               `json:"lists"`
	RoomSubscriptions map[string]RoomSubscription `json:"room_subscriptions,omitempty"`
	UnsubscribeRooms  []string                    `json:"unsubscribe_rooms,omitempty"`
	TxnID             string                      `json:"txn_id,omitempty"`
}

type RequestList struct {
	RoomSubscription
	Ranges  SliceRanges     `json:"ranges"`
	Sort    []string        `json:"sort,omitempty"`
	Filters *RequestFilters `json:"filters,omitempty"`
}

// Same returns true if both requests would produce the same JSON, ignoring the txn ID.
func (r *Request) Same(other *Request) bool {
	a, b := *r, *other
	a.TxnID, b.TxnID = "", ""
	serialised, err := json.Marshal(a)
	if err != nil {
		return false
	}
	otherSer, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(serialised, otherSer)
}

type RequestFilters struct {
	Spaces         []string `json:"spaces,omitempty"`
	IsDM           *bool    `json:"is_dm,omitempty"`
	IsEncrypted    *bool    `json:"is_encrypted,omitempty"`
	IsInvite       *bool    `json:"is_invite,omitempty"`
	IsTombstoned   *bool    `json:"is_tombstoned,omitempty"`
	RoomNameFilter string   `json:"room_name_like,omitempty"`
}

// Copy returns a deep copy of these filters.
func (rf RequestFilters) Copy() RequestFilters {
	cpy := rf
	if rf.Spaces != nil {
		cpy.Spaces = append([]string{}, rf.Spaces...)
	}
	cpy.IsDM = copyBool(rf.IsDM)
	cpy.IsEncrypted = copyBool(rf.IsEncrypted)
	cpy.IsInvite = copyBool(rf.IsInvite)
	cpy.IsTombstoned = copyBool(rf.IsTombstoned)
	return cpy
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func ChangedFilters(prev, next *RequestFilters) bool {
	// easier to marshal as JSON rather than do a bazillion nil checks
	pb, err := json.Marshal(prev)
	if err != nil {
		panic(err)
	}
	nb, err := json.Marshal(next)
	if err != nil {
		panic(err)
	}
	return !bytes.Equal(pb, nb)
}

type RoomSubscription struct {
	RequiredState [][2]string `json:"required_state,omitempty"`
	TimelineLimit int64       `json:"timeline_limit,omitempty"`
}

var (
	// ListSubscription is what each room in a list needs to render its slot: the avatar, whether
	// it is obsolete and the most recent event.
	ListSubscription = RoomSubscription{
		RequiredState: [][2]string{
			{"m.room.avatar", ""},
			{"m.room.tombstone", ""},
		},
		TimelineLimit: 1,
	}
	// SelectedRoomSubscription is what the currently selected room needs to render its header and
	// timeline.
	SelectedRoomSubscription = RoomSubscription{
		RequiredState: [][2]string{
			{"m.room.avatar", ""},
			{"m.room.topic", ""},
			{"m.room.tombstone", ""},
		},
		TimelineLimit: 30,
	}
)
