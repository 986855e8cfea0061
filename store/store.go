// Package store holds every room the client has ever seen, for the lifetime of the process.
//
// Rooms are never removed: the server only ever sends deltas, so forgetting a room would lose
// fields which will not be sent again until they change.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// ErrMissingRoomID is returned when merging an update which does not say which room it is for.
var ErrMissingRoomID = errors.New("room update has no room ID")

// Room is everything known about a room, accumulated from every update received for it.
type Room struct {
	RoomID            string
	Name              internal.Optional[string]
	Avatar            internal.Optional[string]
	Topic             internal.Optional[string]
	Obsolete          internal.Optional[string]
	HighlightCount    int
	NotificationCount int
	Timeline          []json.RawMessage
}

// DisplayName is the room name, or the room ID if the room has no name.
func (r *Room) DisplayName() string {
	return r.Name.Or(r.RoomID)
}

// IsObsolete returns true once a tombstone has been seen for this room.
func (r *Room) IsObsolete() bool {
	return r.Obsolete.Set
}

// LastEvent returns the most recent timeline event, or nil if there is no timeline.
func (r *Room) LastEvent() json.RawMessage {
	if len(r.Timeline) == 0 {
		return nil
	}
	return r.Timeline[len(r.Timeline)-1]
}

func (r *Room) copy() Room {
	cpy := *r
	cpy.Timeline = slices.Clone(r.Timeline)
	return cpy
}

// Store is the single owner of all rooms. Merge is the only way to modify a room.
type Store struct {
	mu           *sync.RWMutex
	roomIDToRoom map[string]*Room
}

func New() *Store {
	return &Store{
		mu:           &sync.RWMutex{},
		roomIDToRoom: make(map[string]*Room),
	}
}

// Merge applies an update for a single room and returns the resulting room.
//
// If isIncremental is true and the room is already known, the scalar fields in the update
// replace the stored ones only if they were sent, and the timeline events are appended in order.
// Otherwise the update becomes the stored room. In both cases the required state is then scanned
// for the avatar, topic and tombstone.
//
// The store never keeps references to the update: it may be reused by the caller.
func (s *Store) Merge(update sync3.Room, isIncremental bool) (Room, error) {
	if update.RoomID == "" {
		return Room{}, ErrMissingRoomID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, exists := s.roomIDToRoom[update.RoomID]
	wasObsolete := exists && room.IsObsolete()
	if isIncremental && exists {
		if update.Name.Set {
			room.Name = update.Name
		}
		if update.HighlightCount.Set {
			room.HighlightCount = update.HighlightCount.Value
		}
		if update.NotificationCount.Set {
			room.NotificationCount = update.NotificationCount.Value
		}
		room.Timeline = append(room.Timeline, cloneEvents(update.Timeline)...)
	} else {
		next := &Room{
			RoomID:            update.RoomID,
			Name:              update.Name,
			HighlightCount:    update.HighlightCount.Value,
			NotificationCount: update.NotificationCount.Value,
			Timeline:          cloneEvents(update.Timeline),
		}
		if exists {
			// a full payload replaces the room, but a tombstone is terminal
			next.Obsolete = room.Obsolete
		}
		room = next
	}
	project(room, update.RequiredState)
	if !wasObsolete && room.IsObsolete() {
		logger.Info().Str("room", room.RoomID).Str("reason", room.Obsolete.Value).Msg("room is now obsolete")
	}
	s.roomIDToRoom[room.RoomID] = room
	return room.copy(), nil
}

func cloneEvents(events []json.RawMessage) []json.RawMessage {
	if events == nil {
		return nil
	}
	cpy := make([]json.RawMessage, len(events))
	for i := range events {
		cpy[i] = slices.Clone(events[i])
	}
	return cpy
}

// Get returns a copy of the room, and false if the room is unknown.
func (s *Store) Get(roomID string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.roomIDToRoom[roomID]
	if !ok {
		return Room{}, false
	}
	return room.copy(), true
}

// Has returns true if the room is known.
func (s *Store) Has(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roomIDToRoom[roomID]
	return ok
}

// Len returns the number of known rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roomIDToRoom)
}

// RoomIDs returns the IDs of every known room in ascending order.
func (s *Store) RoomIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return internal.SortedKeys(s.roomIDToRoom)
}
