package sync3

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

const (
	// StaticRangeEnd is the exclusive end of the prefix of every list which is always requested.
	StaticRangeEnd = 20
	// DynamicRangeSlot is the index in the active ranges which holds the viewport window.
	DynamicRangeSlot = 1
)

// StaticRange is [0,20) as an inclusive range.
var StaticRange = [2]int64{0, StaticRangeEnd - 1}

// List is one filtered, ordered view over all the rooms the user is joined to, e.g "Direct
// Messages". The server tells us how many rooms match the filters and which room is at each
// index inside the ranges we asked for. Indexes outside those ranges are unknown: they render
// as placeholders.
//
// A List is shared between the transport, which reads the ranges and filters when building
// requests and applies responses, and the viewport, which changes the dynamic range. All access
// goes through methods which take the lock.
type List struct {
	Name string

	mu                *sync.Mutex
	filters           RequestFilters
	joinedCount       int
	roomIndexToRoomID map[int]string
	activeRanges      SliceRanges
}

// ListSnapshot is a copy of the state of a List at a point in time.
type ListSnapshot struct {
	Name              string         `json:"name"`
	Filters           RequestFilters `json:"filters"`
	JoinedCount       int            `json:"count"`
	RoomIndexToRoomID map[int]string `json:"room_index_to_room_id"`
	ActiveRanges      SliceRanges    `json:"ranges"`
}

func NewList(name string, filters RequestFilters) *List {
	return &List{
		Name:              name,
		mu:                &sync.Mutex{},
		filters:           filters.Copy(),
		roomIndexToRoomID: make(map[int]string),
		activeRanges:      SliceRanges{StaticRange},
	}
}

// Filters returns a copy of the current filters. Modify the copy then call SetFilters.
func (l *List) Filters() RequestFilters {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filters.Copy()
}

// SetFilters replaces the filters. They are sent on the next request. Returns true if the filters
// changed.
func (l *List) SetFilters(f RequestFilters) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := f.Copy()
	changed := ChangedFilters(&l.filters, &next)
	l.filters = next
	return changed
}

// Ranges returns a copy of the active ranges.
func (l *List) Ranges() SliceRanges {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeRanges.Copy()
}

// SetDynamicRange replaces the viewport window, which is always the second active range. Returns
// true if the ranges changed.
func (l *List) SetDynamicRange(r [2]int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.activeRanges) > DynamicRangeSlot && l.activeRanges[DynamicRangeSlot] == r {
		return false
	}
	for len(l.activeRanges) <= DynamicRangeSlot {
		l.activeRanges = append(l.activeRanges, r)
	}
	l.activeRanges[DynamicRangeSlot] = r
	return true
}

// JoinedCount is the total number of rooms matching the filters according to the server.
func (l *List) JoinedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.joinedCount
}

// RoomIDAt returns the room at this index, or "" if it is not known.
func (l *List) RoomIDAt(i int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.roomIndexToRoomID[i]
}

func (l *List) Snapshot() ListSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := make(map[int]string, len(l.roomIndexToRoomID))
	for k, v := range l.roomIndexToRoomID {
		m[k] = v
	}
	return ListSnapshot{
		Name:              l.Name,
		Filters:           l.filters.Copy(),
		JoinedCount:       l.joinedCount,
		RoomIndexToRoomID: m,
		ActiveRanges:      l.activeRanges.Copy(),
	}
}

// RequestList builds the request for this list.
func (l *List) RequestList(sub RoomSubscription, sort []string) RequestList {
	l.mu.Lock()
	defer l.mu.Unlock()
	filters := l.filters.Copy()
	return RequestList{
		RoomSubscription: sub,
		Ranges:           l.activeRanges.Copy(),
		Sort:             sort,
		Filters:          &filters,
	}
}

// ApplyResponse updates the count and the index to room ID mapping from the list in a response.
// Operations are applied in the order given.
func (l *List) ApplyResponse(res ResponseList) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joinedCount = res.Count
	// a window starting past the end of a shrunk list can never hold a room
	if len(l.activeRanges) > DynamicRangeSlot && l.activeRanges[DynamicRangeSlot][0] >= int64(res.Count) {
		logger.Debug().Str("list", l.Name).Int("count", res.Count).Ints64("range", l.activeRanges[DynamicRangeSlot][:]).Msg("dropping dynamic range beyond end of list")
		l.activeRanges = l.activeRanges[:DynamicRangeSlot]
	}
	// the index most recently emptied by a DELETE: an INSERT fills the gap by shifting towards it
	deletedIndex := -1
	for _, op := range res.Ops {
		switch o := op.(type) {
		case *ResponseOpRange:
			if len(o.Range) != 2 || o.Range[0] > o.Range[1] {
				logger.Warn().Str("list", l.Name).Str("op", o.Operation).Ints64("range", o.Range).Msg("ignoring op with malformed range")
				continue
			}
			switch o.Operation {
			case OpSync:
				width := int(o.Range[1]-o.Range[0]) + 1
				if len(o.RoomIDs) > width {
					logger.Warn().Str("list", l.Name).Ints64("range", o.Range).Int("num_room_ids", len(o.RoomIDs)).Msg("SYNC op has more room IDs than its range, ignoring the excess")
				}
				for i, roomID := range o.RoomIDs {
					if i >= width {
						break
					}
					l.roomIndexToRoomID[int(o.Range[0])+i] = roomID
				}
			case OpInvalidate:
				for i := o.Range[0]; i <= o.Range[1]; i++ {
					delete(l.roomIndexToRoomID, int(i))
				}
			default:
				logger.Warn().Str("list", l.Name).Str("op", o.Operation).Msg("unknown range op")
			}
		case *ResponseOpSingle:
			if o.Index == nil {
				logger.Warn().Str("list", l.Name).Str("op", o.Operation).Msg("ignoring op without index")
				continue
			}
			switch o.Operation {
			case OpDelete:
				deletedIndex = *o.Index
				delete(l.roomIndexToRoomID, *o.Index)
			case OpInsert:
				l.insert(*o.Index, o.RoomID, deletedIndex)
				deletedIndex = -1
			default:
				logger.Warn().Str("list", l.Name).Str("op", o.Operation).Msg("unknown op")
			}
		}
	}
}

// insert places roomID at index. If the index is occupied, the rooms between the index and the
// gap are shifted by one towards the gap. Without a preceding DELETE the gap is the first free
// index above, bounded by the end of the range containing the index: the room at the end of the
// range falls out of the window.
func (l *List) insert(index int, roomID string, deletedIndex int) {
	if _, occupied := l.roomIndexToRoomID[index]; !occupied {
		l.roomIndexToRoomID[index] = roomID
		return
	}
	gap := deletedIndex
	if gap == -1 {
		end := -1
		if r, ok := l.activeRanges.Containing(int64(index)); ok {
			end = int(r[1])
		}
		gap = index
		for {
			if _, ok := l.roomIndexToRoomID[gap]; !ok {
				break
			}
			if gap == end {
				break
			}
			gap++
		}
	}
	if gap > index {
		for i := gap; i > index; i-- {
			l.move(i-1, i)
		}
	} else if gap < index {
		for i := gap; i < index; i++ {
			l.move(i+1, i)
		}
	}
	l.roomIndexToRoomID[index] = roomID
}

func (l *List) move(from, to int) {
	roomID, ok := l.roomIndexToRoomID[from]
	if !ok {
		delete(l.roomIndexToRoomID, to)
		return
	}
	l.roomIndexToRoomID[to] = roomID
}
