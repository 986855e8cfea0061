// Package syncv3client wires the sliding sync client together: the room store, the viewport
// tracking which decides the ranges to request, the list views and the consistency audit.
//
// All events, whether from the user (visibility changes, filters, selection) or from the sync
// engine (room data, lifecycle), are handled one at a time.
package syncv3client

import (
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/sliding-sync-client/audit"
	"github.com/matrix-org/sliding-sync-client/listview"
	"github.com/matrix-org/sliding-sync-client/store"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/matrix-org/sliding-sync-client/transport"
	"github.com/matrix-org/sliding-sync-client/viewport"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// Connection is the in-flight request of the sync engine.
type Connection interface {
	// Abort cancels the in-flight request, if any. The engine immediately sends a new request
	// built from the current state of the lists. Must not block.
	Abort()
}

type SyncEngine interface {
	// Start syncing with this access token.
	Start(accessToken string)
	// Stop syncing. No callbacks are made once Stop returns.
	Stop()
	// SetRoomSubscription subscribes to a single room, "" to unsubscribe.
	SetRoomSubscription(roomID string)
}

// Recorder receives the lists after each completed sync cycle.
type Recorder interface {
	Record(lists []sync3.ListSnapshot, resp *sync3.Response)
}

type Opts struct {
	// How long visibility must be stable before new ranges are requested. Defaults to
	// viewport.DefaultDelay.
	DebounceDelay time.Duration
	// Defaults to the real clock.
	Clock     clockwork.Clock
	Presenter listview.Presenter
	// Told which slots exist so it can report their visibility. Optional.
	Observer listview.SlotObserver
	// Optional.
	Recorder         Recorder
	EnablePrometheus bool
}

type Client struct {
	lists  []*sync3.List
	conn   Connection
	engine SyncEngine

	store      *store.Store
	tracker    *viewport.Tracker
	debouncer  *viewport.Debouncer
	reconciler *listview.Reconciler
	roomViewer *listview.RoomViewer
	auditor    *audit.Auditor
	recorder   Recorder

	mu        *sync.Mutex
	lastError string
	reports   []audit.Report
}

// Setup makes a client over these lists. The engine must sync the same lists, abort through
// conn and deliver its callbacks to OnLifecycle and OnRoomData.
func Setup(lists []*sync3.List, conn Connection, engine SyncEngine, opts Opts) *Client {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	c := &Client{
		lists:    lists,
		conn:     conn,
		engine:   engine,
		store:    store.New(),
		tracker:  viewport.NewTracker(),
		auditor:  audit.NewAuditor(opts.EnablePrometheus),
		recorder: opts.Recorder,
		mu:       &sync.Mutex{},
	}
	c.debouncer = viewport.NewDebouncer(c.tracker, lists, conn, opts.Clock, opts.DebounceDelay, opts.EnablePrometheus)
	c.reconciler = listview.NewReconciler(lists, c.store, opts.Presenter, opts.Observer)
	c.roomViewer = listview.NewRoomViewer(c.store, opts.Presenter)
	return c
}

// Start syncing with this access token. A previous sync is stopped first, and none of its
// callbacks run after Start returns.
func (c *Client) Start(accessToken string) {
	// not under the lock: stopping waits for in-flight callbacks, which take the lock
	c.engine.Stop()
	c.mu.Lock()
	c.lastError = ""
	c.mu.Unlock()
	c.engine.Start(accessToken)
}

// Stop syncing and drop any pending range change. Visibility is still tracked, so a later Start
// picks up where the viewport is.
func (c *Client) Stop() {
	c.engine.Stop()
	c.debouncer.Cancel()
}

// Teardown stops syncing for good and releases timers and metrics.
func (c *Client) Teardown() {
	c.Stop()
	c.debouncer.Stop()
	c.auditor.Teardown()
}

// OnIntersection reports that a slot entered or left the screen. New ranges are requested once
// visibility has been stable for the debounce delay.
func (c *Client) OnIntersection(key viewport.Key, isVisible bool) {
	c.tracker.OnIntersection(key, isVisible)
	c.debouncer.Touch()
}

// SetRoomNameFilter filters every list to rooms whose name contains the term, "" to clear the
// filter, then interrupts the engine so the filter applies at once.
func (c *Client) SetRoomNameFilter(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	for _, l := range c.lists {
		f := l.Filters()
		f.RoomNameFilter = term
		if l.SetFilters(f) {
			changed = true
		}
	}
	logger.Info().Str("term", term).Bool("changed", changed).Msg("room name filter")
	c.conn.Abort()
}

// SelectRoom opens the room at this index of the list: it is subscribed to and its timeline is
// shown. Does nothing if no room is known at the index.
func (c *Client) SelectRoom(listIndex, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if listIndex < 0 || listIndex >= len(c.lists) {
		logger.Warn().Int("list", listIndex).Msg("SelectRoom: unknown list")
		return
	}
	roomID := c.lists[listIndex].RoomIDAt(index)
	if roomID == "" {
		logger.Warn().Int("list", listIndex).Int("index", index).Msg("SelectRoom: no room at index")
		return
	}
	logger.Info().Str("room", roomID).Int("list", listIndex).Int("index", index).Msg("selecting room")
	c.engine.SetRoomSubscription(roomID)
	c.roomViewer.Select(roomID)
	c.reconciler.SetSelected(roomID)
	c.reconcileAll()
	c.conn.Abort()
}

// OnLifecycle is the engine's lifecycle callback.
func (c *Client) OnLifecycle(state transport.LifecycleState, resp *sync3.Response, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch state {
	case transport.LifecycleSyncRequestFinished:
		if err != nil {
			c.lastError = err.Error()
		} else {
			c.lastError = ""
		}
	case transport.LifecycleSyncComplete:
		c.reconcileAll()
		snapshots := c.snapshots()
		c.reports = c.auditor.AuditAll(snapshots)
		if c.recorder != nil {
			c.recorder.Record(snapshots, resp)
		}
	}
}

// OnRoomData is the engine's room callback. A room which is already known is always merged
// incrementally, even if the server sent all of it.
func (c *Client) OnRoomData(roomID string, room sync3.Room, isIncremental bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room.RoomID == "" {
		room.RoomID = roomID
	}
	if _, err := c.store.Merge(room, isIncremental || c.store.Has(roomID)); err != nil {
		logger.Err(err).Str("room", roomID).Msg("failed to merge room")
		return
	}
	c.roomViewer.Update(roomID)
}

func (c *Client) reconcileAll() {
	for i := range c.lists {
		c.reconciler.Reconcile(i)
	}
}

func (c *Client) snapshots() []sync3.ListSnapshot {
	snapshots := make([]sync3.ListSnapshot, len(c.lists))
	for i, l := range c.lists {
		snapshots[i] = l.Snapshot()
	}
	return snapshots
}

// Error returns the error of the last request, or "" if it succeeded.
func (c *Client) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// Lists returns a snapshot of every list.
func (c *Client) Lists() []sync3.ListSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots()
}

// Slots returns what the list is showing.
func (c *Client) Slots(listIndex int) []listview.Slot {
	return c.reconciler.Slots(listIndex)
}

func (c *Client) Room(roomID string) (store.Room, bool) {
	return c.store.Get(roomID)
}

// RoomView returns the view of the selected room.
func (c *Client) RoomView() listview.RoomView {
	return c.roomViewer.View()
}

// Reports returns the audit of every list after the last completed sync cycle.
func (c *Client) Reports() []audit.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Report(nil), c.reports...)
}

type nopObserver struct{}

func (nopObserver) Observe(viewport.Key)   {}
func (nopObserver) Unobserve(viewport.Key) {}
