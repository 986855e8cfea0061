package store

import (
	"encoding/json"
	"testing"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/matrix-org/sliding-sync-client/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = "@alice:localhost"

func TestMergeFirstSight(t *testing.T) {
	s := New()
	ev := testutils.NewEvent(t, "m.room.message", alice, map[string]interface{}{"body": "hi"})
	got, err := s.Merge(sync3.Room{
		RoomID:            "!a:localhost",
		Name:              internal.Some("A"),
		NotificationCount: internal.Some(3),
		Timeline:          []json.RawMessage{ev},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "!a:localhost", got.RoomID)
	assert.Equal(t, "A", got.DisplayName())
	assert.Equal(t, 3, got.NotificationCount)
	assert.Equal(t, 0, got.HighlightCount)
	assert.Len(t, got.Timeline, 1)
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Has("!a:localhost"))
}

func TestMergeMissingRoomID(t *testing.T) {
	s := New()
	_, err := s.Merge(sync3.Room{Name: internal.Some("A")}, false)
	assert.ErrorIs(t, err, ErrMissingRoomID)
	assert.Equal(t, 0, s.Len())
}

// The final scalar values are those of the last update which sent them, and the timeline is the
// concatenation of every timeline in arrival order.
func TestMergeIncrementalLaws(t *testing.T) {
	s := New()
	roomID := "!a:localhost"
	var wantTimeline []json.RawMessage
	newEvent := func() json.RawMessage {
		ev := testutils.NewEvent(t, "m.room.message", alice, map[string]interface{}{"body": "x"})
		wantTimeline = append(wantTimeline, ev)
		return ev
	}
	updates := []sync3.Room{
		{Name: internal.Some("first"), HighlightCount: internal.Some(1), NotificationCount: internal.Some(5), Timeline: []json.RawMessage{newEvent(), newEvent()}},
		{HighlightCount: internal.Some(0)},
		{Timeline: []json.RawMessage{newEvent()}},
		{Name: internal.Some("second"), Timeline: []json.RawMessage{newEvent()}},
		{NotificationCount: internal.Some(7)},
		{},
	}
	for i, u := range updates {
		u.RoomID = roomID
		_, err := s.Merge(u, i > 0)
		require.NoError(t, err)
	}
	got, ok := s.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, "second", got.Name.Value)
	assert.Equal(t, 0, got.HighlightCount, "explicit zero must overwrite")
	assert.Equal(t, 7, got.NotificationCount)
	assert.Equal(t, wantTimeline, got.Timeline)
}

func TestMergeNonIncrementalReplaces(t *testing.T) {
	s := New()
	roomID := "!a:localhost"
	_, err := s.Merge(sync3.Room{
		RoomID:   roomID,
		Name:     internal.Some("A"),
		Timeline: []json.RawMessage{testutils.NewEvent(t, "m.room.message", alice, map[string]interface{}{"body": "1"})},
	}, false)
	require.NoError(t, err)
	got, err := s.Merge(sync3.Room{
		RoomID:            roomID,
		NotificationCount: internal.Some(2),
	}, false)
	require.NoError(t, err)
	assert.False(t, got.Name.Set, "a full payload replaces the room")
	assert.Equal(t, roomID, got.DisplayName())
	assert.Empty(t, got.Timeline)
	assert.Equal(t, 2, got.NotificationCount)
}

func TestMergeDoesNotRetainCallerBuffers(t *testing.T) {
	s := New()
	roomID := "!a:localhost"
	ev := testutils.NewEvent(t, "m.room.message", alice, map[string]interface{}{"body": "hi"})
	original := append(json.RawMessage{}, ev...)
	update := sync3.Room{
		RoomID:   roomID,
		Timeline: []json.RawMessage{ev},
	}
	_, err := s.Merge(update, false)
	require.NoError(t, err)
	// the transport reuses its buffers
	for i := range ev {
		ev[i] = ' '
	}
	update.Timeline[0] = json.RawMessage(`{}`)

	got, _ := s.Get(roomID)
	require.Len(t, got.Timeline, 1)
	assert.Equal(t, string(original), string(got.Timeline[0]))

	// and callers cannot modify the store via Get
	got.Timeline[0] = json.RawMessage(`{}`)
	got.Timeline = append(got.Timeline, json.RawMessage(`{}`))
	again, _ := s.Get(roomID)
	assert.Len(t, again.Timeline, 1)
	assert.Equal(t, string(original), string(again.Timeline[0]))
}

func TestMergeRequiredState(t *testing.T) {
	s := New()
	roomID := "!a:localhost"
	got, err := s.Merge(sync3.Room{
		RoomID: roomID,
		RequiredState: []json.RawMessage{
			testutils.NewStateEvent(t, "m.room.avatar", "", alice, map[string]interface{}{"url": "mxc://localhost/old"}),
			testutils.NewStateEvent(t, "m.room.topic", "", alice, map[string]interface{}{"topic": "things"}),
			testutils.NewStateEvent(t, "m.room.avatar", "", alice, map[string]interface{}{"url": "mxc://localhost/new"}),
			testutils.NewStateEvent(t, "m.room.create", "", alice, map[string]interface{}{}),
		},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "mxc://localhost/new", got.Avatar.Value, "last occurrence wins")
	assert.Equal(t, "things", got.Topic.Value)
	assert.False(t, got.IsObsolete())

	// a batch without the topic leaves it alone
	got, err = s.Merge(sync3.Room{
		RoomID: roomID,
		RequiredState: []json.RawMessage{
			testutils.NewStateEvent(t, "m.room.avatar", "", alice, map[string]interface{}{}),
		},
	}, true)
	require.NoError(t, err)
	assert.True(t, got.Avatar.Set)
	assert.Equal(t, "", got.Avatar.Value, "avatar removed")
	assert.Equal(t, "things", got.Topic.Value)
}

func TestMergeTombstoneIsTerminal(t *testing.T) {
	s := New()
	roomID := "!a:localhost"
	got, err := s.Merge(sync3.Room{
		RoomID: roomID,
		RequiredState: []json.RawMessage{
			testutils.NewStateEvent(t, "m.room.tombstone", "", alice, map[string]interface{}{
				"body":             "This room has been replaced",
				"replacement_room": "!b:localhost",
			}),
		},
	}, false)
	require.NoError(t, err)
	assert.True(t, got.IsObsolete())
	assert.Equal(t, "This room has been replaced", got.Obsolete.Value)

	// later updates which omit the tombstone keep the room obsolete, whether incremental or not
	_, err = s.Merge(sync3.Room{
		RoomID: roomID,
		RequiredState: []json.RawMessage{
			testutils.NewStateEvent(t, "m.room.topic", "", alice, map[string]interface{}{"topic": "x"}),
		},
	}, true)
	require.NoError(t, err)
	got, err = s.Merge(sync3.Room{RoomID: roomID, Name: internal.Some("A")}, false)
	require.NoError(t, err)
	assert.True(t, got.IsObsolete())
	assert.Equal(t, "This room has been replaced", got.Obsolete.Value)
}

func TestMergeTombstoneDefaultReason(t *testing.T) {
	s := New()
	got, err := s.Merge(sync3.Room{
		RoomID: "!a:localhost",
		RequiredState: []json.RawMessage{
			testutils.NewStateEvent(t, "m.room.tombstone", "", alice, map[string]interface{}{"replacement_room": "!b:localhost"}),
		},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultObsoleteReason, got.Obsolete.Value)
}

func TestRoomIDs(t *testing.T) {
	s := New()
	for _, roomID := range []string{"!c", "!a", "!b"} {
		_, err := s.Merge(sync3.Room{RoomID: roomID}, false)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"!a", "!b", "!c"}, s.RoomIDs())
	_, ok := s.Get("!d")
	assert.False(t, ok)
}

func TestRoomLastEvent(t *testing.T) {
	var r Room
	assert.Nil(t, r.LastEvent())
	r.Timeline = []json.RawMessage{json.RawMessage(`{"a":1}`), json.RawMessage(`{"b":2}`)}
	assert.Equal(t, `{"b":2}`, string(r.LastEvent()))
}
