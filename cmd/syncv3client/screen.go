package main

import (
	"sync"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/viewport"
)

// rowsPerScreen is how many slots of each list are on screen at once.
const rowsPerScreen = 10

type intersector interface {
	OnIntersection(key viewport.Key, isVisible bool)
}

// screen stands in for a display in the terminal: each list shows a window of rowsPerScreen
// slots which moves when the user scrolls. A slot is visible when it exists and is inside the
// window of its list.
//
// Slots are created and removed while the client holds its lock, so visibility is reported
// later from report, like an intersection observer would.
type screen struct {
	mu       *sync.Mutex
	observed map[viewport.Key]struct{}
	reported map[viewport.Key]struct{}
	// list index to the first row on screen
	scroll map[int]int
}

func newScreen() *screen {
	return &screen{
		mu:       &sync.Mutex{},
		observed: make(map[viewport.Key]struct{}),
		reported: make(map[viewport.Key]struct{}),
		scroll:   make(map[int]int),
	}
}

func (s *screen) Observe(key viewport.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed[key] = struct{}{}
}

func (s *screen) Unobserve(key viewport.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observed, key)
}

// Scroll moves the window of the list so that row is the first row on screen.
func (s *screen) Scroll(listIndex, row int) {
	if row < 0 {
		row = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scroll[listIndex] = row
}

// Window returns the rows of the list on screen, [start,end).
func (s *screen) Window(listIndex int) (start, end int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = s.scroll[listIndex]
	return start, start + rowsPerScreen
}

func (s *screen) onScreen(key viewport.Key) bool {
	if _, ok := s.observed[key]; !ok {
		return false
	}
	start := s.scroll[key.ListIndex]
	return key.RoomIndex >= start && key.RoomIndex < start+rowsPerScreen
}

type visibilityChange struct {
	key     viewport.Key
	visible bool
}

// changes returns every slot whose visibility differs from what was last reported, and marks
// them reported. Slots leaving the screen come first.
func (s *screen) changes() []visibilityChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changes []visibilityChange
	for _, key := range sortedKeys(s.reported) {
		if !s.onScreen(key) {
			delete(s.reported, key)
			changes = append(changes, visibilityChange{key: key, visible: false})
		}
	}
	for _, key := range sortedKeys(s.observed) {
		if _, ok := s.reported[key]; ok || !s.onScreen(key) {
			continue
		}
		s.reported[key] = struct{}{}
		changes = append(changes, visibilityChange{key: key, visible: true})
	}
	return changes
}

// report tells the client about every change in visibility since the last report.
func (s *screen) report(c intersector) int {
	changes := s.changes()
	for _, ch := range changes {
		c.OnIntersection(ch.key, ch.visible)
	}
	return len(changes)
}

// sortedKeys orders keys by their string form, which is stable across runs.
func sortedKeys(m map[viewport.Key]struct{}) []viewport.Key {
	byString := make(map[string]viewport.Key, len(m))
	for k := range m {
		byString[k.String()] = k
	}
	keys := make([]viewport.Key, 0, len(m))
	for _, s := range internal.SortedKeys(byString) {
		keys = append(keys, byString[s])
	}
	return keys
}
