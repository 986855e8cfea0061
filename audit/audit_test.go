package audit

import (
	"testing"

	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/stretchr/testify/assert"
)

func TestAudit(t *testing.T) {
	testCases := []struct {
		name string
		list sync3.ListSnapshot
		want Report
	}{
		{
			name: "consistent list",
			list: sync3.ListSnapshot{
				RoomIndexToRoomID: map[int]string{0: "!a", 1: "!b", 25: "!c"},
				ActiveRanges:      sync3.SliceRanges{{0, 19}, {20, 40}},
			},
			want: Report{},
		},
		{
			name: "duplicate room",
			list: sync3.ListSnapshot{
				RoomIndexToRoomID: map[int]string{3: "R1", 5: "R2", 8: "R1"},
				ActiveRanges:      sync3.SliceRanges{{0, 19}},
			},
			want: Report{
				Duplicates: map[string][]int{"R1": {3, 8}},
			},
		},
		{
			name: "index out of range",
			list: sync3.ListSnapshot{
				RoomIndexToRoomID: map[int]string{0: "!a", 50: "!b"},
				ActiveRanges:      sync3.SliceRanges{{0, 19}, {20, 40}},
			},
			want: Report{
				OutOfRange: []int{50},
			},
		},
		{
			name: "both",
			list: sync3.ListSnapshot{
				RoomIndexToRoomID: map[int]string{2: "!a", 44: "!a", 41: "!b", 60: "!c", 61: "!c", 62: "!c"},
				ActiveRanges:      sync3.SliceRanges{{0, 19}, {20, 40}},
			},
			want: Report{
				Duplicates: map[string][]int{"!a": {2, 44}, "!c": {60, 61, 62}},
				OutOfRange: []int{41, 44, 60, 61, 62},
			},
		},
		{
			name: "empty room IDs are ignored",
			list: sync3.ListSnapshot{
				RoomIndexToRoomID: map[int]string{1: "", 2: "", 99: ""},
				ActiveRanges:      sync3.SliceRanges{{0, 19}},
			},
			want: Report{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Audit(tc.list)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, len(tc.want.Duplicates) == 0 && len(tc.want.OutOfRange) == 0, got.OK())
		})
	}
}

func TestAuditDoesNotModifyList(t *testing.T) {
	l := sync3.NewList("test", sync3.RequestFilters{})
	sync3Op := func(start, end int64, roomIDs ...string) sync3.ResponseOp {
		return &sync3.ResponseOpRange{Operation: sync3.OpSync, Range: []int64{start, end}, RoomIDs: roomIDs}
	}
	l.ApplyResponse(sync3.ResponseList{
		Count: 5,
		Ops:   []sync3.ResponseOp{sync3Op(0, 2, "!a", "!b", "!a")},
	})
	before := l.Snapshot()
	a := NewAuditor(false)
	reports := a.AuditAll([]sync3.ListSnapshot{before})
	assert.Equal(t, map[string][]int{"!a": {0, 2}}, reports[0].Duplicates)
	assert.Equal(t, before, l.Snapshot())
}
