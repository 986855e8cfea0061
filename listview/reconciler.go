// Package listview maps each list onto a pool of view slots, one per room in the list, and
// decides what every slot shows. It holds no sync state of its own: it reads the lists and the
// room store and is re-run whenever they change.
package listview

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/store"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/matrix-org/sliding-sync-client/viewport"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// PlaceholderAvatar is shown for rooms without an avatar and for unknown rooms.
const PlaceholderAvatar = "/client/placeholder.svg"

// Unread badge classes. At most one applies.
const (
	BadgeHighlight = "unreadcounthighlight"
	BadgeNotify    = "unreadcountnotify"
)

// Presenter turns events and timestamps into display strings.
type Presenter interface {
	TextForEvent(ev json.RawMessage) string
	FormatTimestamp(originServerTS int64) string
	// AvatarURL returns "" if the avatar cannot be shown.
	AvatarURL(mxc string) string
}

// SlotObserver is told when slots are created and destroyed, so it can report when they scroll
// on or off screen and when they are clicked. Both are called during Reconcile and must not call
// back into the Reconciler.
type SlotObserver interface {
	Observe(key viewport.Key)
	Unobserve(key viewport.Key)
}

// Rooms is the read side of the room store.
type Rooms interface {
	Get(roomID string) (store.Room, bool)
}

// Content is everything a slot shows.
type Content struct {
	// true if the room at this index is not known yet
	Placeholder bool
	RoomID      string
	Name        string
	// the second line, e.g the latest message
	Content   string
	Sender    string
	Timestamp string
	AvatarURL string
	// the number to show in the unread badge, "" for no badge
	UnreadCount string
	// BadgeHighlight, BadgeNotify or ""
	UnreadClass string
	Selected    bool
}

type Slot struct {
	Key     viewport.Key
	Content Content
}

// Reconciler owns one slot pool per list.
type Reconciler struct {
	lists     []*sync3.List
	rooms     Rooms
	presenter Presenter
	observer  SlotObserver

	mu             *sync.Mutex
	pools          [][]Slot
	selectedRoomID string
}

func NewReconciler(lists []*sync3.List, rooms Rooms, presenter Presenter, observer SlotObserver) *Reconciler {
	return &Reconciler{
		lists:     lists,
		rooms:     rooms,
		presenter: presenter,
		observer:  observer,
		mu:        &sync.Mutex{},
		pools:     make([][]Slot, len(lists)),
	}
}

// SetSelected marks a room as the selected room. It is highlighted on the next Reconcile.
func (r *Reconciler) SetSelected(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectedRoomID = roomID
}

// Reconcile resizes the pool of the list to the number of rooms in the list then refreshes the
// content of every slot. Returns how many slots were added and removed.
func (r *Reconciler) Reconcile(listIndex int) (added, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if listIndex < 0 || listIndex >= len(r.lists) {
		logger.Error().Int("list", listIndex).Msg("Reconcile: no list at this index")
		return 0, 0
	}
	list := r.lists[listIndex].Snapshot()
	pool := r.pools[listIndex]
	for len(pool) > list.JoinedCount {
		last := pool[len(pool)-1]
		r.observer.Unobserve(last.Key)
		pool = pool[:len(pool)-1]
		removed++
	}
	for i := len(pool); i < list.JoinedCount; i++ {
		key := viewport.Key{ListIndex: listIndex, RoomIndex: i}
		pool = append(pool, Slot{Key: key})
		r.observer.Observe(key)
		added++
	}
	if added > 0 || removed > 0 {
		logger.Trace().Int("list", listIndex).Int("added", added).Int("removed", removed).Msg("resized slot pool")
	}
	for i := range pool {
		pool[i].Content = r.content(i, list.RoomIndexToRoomID[i])
	}
	r.pools[listIndex] = pool
	return added, removed
}

func (r *Reconciler) content(index int, roomID string) Content {
	room, ok := r.rooms.Get(roomID)
	if roomID == "" || !ok {
		return Content{
			Placeholder: true,
			Name:        PlaceholderText(index, false),
			Content:     PlaceholderText(index, true),
			AvatarURL:   PlaceholderAvatar,
		}
	}
	c := Content{
		RoomID:    roomID,
		Name:      room.DisplayName(),
		AvatarURL: avatarURL(r.presenter, room.Avatar.Value),
		Selected:  roomID == r.selectedRoomID,
	}
	// highlights show the notification count so the number does not drop when a highlight is read
	if room.HighlightCount > 0 {
		c.UnreadCount = strconv.Itoa(room.NotificationCount)
		c.UnreadClass = BadgeHighlight
	} else if room.NotificationCount > 0 {
		c.UnreadCount = strconv.Itoa(room.NotificationCount)
		c.UnreadClass = BadgeNotify
	}

	if room.IsObsolete() {
		c.Sender = room.Obsolete.Value
		return c
	}
	lastEvent := room.LastEvent()
	if lastEvent == nil {
		return c
	}
	ev := internal.ParseEvent(lastEvent)
	c.Timestamp = r.presenter.FormatTimestamp(ev.OriginServerTS)
	text := r.presenter.TextForEvent(lastEvent)
	if ev.Type == internal.EventTypeMember {
		c.Sender = text
	} else {
		c.Sender = ev.Sender
		c.Content = text
	}
	return c
}

func avatarURL(p Presenter, mxc string) string {
	if mxc == "" {
		return PlaceholderAvatar
	}
	if u := p.AvatarURL(mxc); u != "" {
		return u
	}
	return PlaceholderAvatar
}

// Slots returns a copy of the pool of the list.
func (r *Reconciler) Slots(listIndex int) []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if listIndex < 0 || listIndex >= len(r.pools) {
		return nil
	}
	slots := make([]Slot, len(r.pools[listIndex]))
	copy(slots, r.pools[listIndex])
	return slots
}

// Slot returns the slot at this position, and false if there is no such slot.
func (r *Reconciler) Slot(key viewport.Key) (Slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key.ListIndex < 0 || key.ListIndex >= len(r.pools) {
		return Slot{}, false
	}
	pool := r.pools[key.ListIndex]
	if key.RoomIndex < 0 || key.RoomIndex >= len(pool) {
		return Slot{}, false
	}
	return pool[key.RoomIndex], true
}
