// Package viewport turns the set of on-screen room slots into the ranges each list asks the server
// for.
package viewport

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

const keyPrefix = "room-"

// Key identifies a room slot: the index of the list it is in and its position in that list.
type Key struct {
	ListIndex int
	RoomIndex int
}

// String returns the slot identifier e.g "room-1-44".
func (k Key) String() string {
	return fmt.Sprintf("%s%d-%d", keyPrefix, k.ListIndex, k.RoomIndex)
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	if !strings.HasPrefix(s, keyPrefix) {
		return Key{}, fmt.Errorf("ParseKey: %q does not start with %q", s, keyPrefix)
	}
	parts := strings.Split(s[len(keyPrefix):], "-")
	if len(parts) != 2 {
		return Key{}, fmt.Errorf("ParseKey: malformed key %q", s)
	}
	listIndex, err := strconv.Atoi(parts[0])
	if err != nil || listIndex < 0 {
		return Key{}, fmt.Errorf("ParseKey: bad list index in %q", s)
	}
	roomIndex, err := strconv.Atoi(parts[1])
	if err != nil || roomIndex < 0 {
		return Key{}, fmt.Errorf("ParseKey: bad room index in %q", s)
	}
	return Key{ListIndex: listIndex, RoomIndex: roomIndex}, nil
}

// Tracker is the set of slots which are currently on-screen.
type Tracker struct {
	mu      *sync.Mutex
	visible map[Key]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		mu:      &sync.Mutex{},
		visible: make(map[Key]struct{}),
	}
}

// OnIntersection records a slot entering (isVisible=true) or leaving the screen.
func (t *Tracker) OnIntersection(key Key, isVisible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if isVisible {
		t.visible[key] = struct{}{}
	} else {
		delete(t.visible, key)
	}
}

// Visible returns the visible slots ordered by list then position.
func (t *Tracker) Visible() []Key {
	t.mu.Lock()
	keys := make([]Key, 0, len(t.visible))
	for k := range t.visible {
		keys = append(keys, k)
	}
	t.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ListIndex != keys[j].ListIndex {
			return keys[i].ListIndex < keys[j].ListIndex
		}
		return keys[i].RoomIndex < keys[j].RoomIndex
	})
	return keys
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.visible)
}
