package sync3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseUnmarshal(t *testing.T) {
	body := `{
		"pos": "7",
		"txn_id": "abc",
		"lists": [
			{"count": 100, "ops": [
				{"op":"SYNC","range":[0,2],"room_ids":["!a","!b","!c"]},
				{"op":"DELETE","index":0},
				{"op":"INSERT","index":0,"room_id":"!d"},
				{"op":"INVALIDATE","range":[20,30]}
			]},
			{"count": 0}
		],
		"rooms": {
			"!a": {"name":"A","notification_count":0,"timeline":[{"type":"m.room.message"}],"initial":true},
			"!b": {"highlight_count":2}
		}
	}`
	var res Response
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, "7", res.Pos)
	assert.Equal(t, "abc", res.TxnID)
	require.Len(t, res.Lists, 2)
	assert.Equal(t, 100, res.Lists[0].Count)
	assert.Equal(t, 4, res.ListOps())
	require.Len(t, res.Lists[0].Ops, 4)

	syncOp, ok := res.Lists[0].Ops[0].(*ResponseOpRange)
	require.True(t, ok, "SYNC should decode as a range op")
	assert.Equal(t, []string{"!a", "!b", "!c"}, syncOp.IncludedRoomIDs())

	delOp, ok := res.Lists[0].Ops[1].(*ResponseOpSingle)
	require.True(t, ok, "DELETE should decode as a single op")
	require.NotNil(t, delOp.Index)
	assert.Equal(t, 0, *delOp.Index)
	assert.Nil(t, delOp.IncludedRoomIDs())

	insOp := res.Lists[0].Ops[2].(*ResponseOpSingle)
	assert.Equal(t, []string{"!d"}, insOp.IncludedRoomIDs())

	invOp := res.Lists[0].Ops[3].(*ResponseOpRange)
	assert.Nil(t, invOp.IncludedRoomIDs())

	roomA := res.Rooms["!a"]
	assert.Equal(t, "!a", roomA.RoomID)
	assert.True(t, roomA.Initial)
	assert.Equal(t, "A", roomA.Name.Value)
	assert.True(t, roomA.NotificationCount.Set)
	assert.False(t, roomA.HighlightCount.Set)
	assert.Len(t, roomA.Timeline, 1)

	roomB := res.Rooms["!b"]
	assert.Equal(t, "!b", roomB.RoomID)
	assert.False(t, roomB.Name.Set)
	assert.False(t, roomB.NotificationCount.Set)
	assert.Equal(t, 2, roomB.HighlightCount.Value)
}
