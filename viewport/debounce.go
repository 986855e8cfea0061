package viewport

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultDelay is how long visibility must stay still before new ranges are sent.
const DefaultDelay = 100 * time.Millisecond

// Aborter interrupts the in-flight sync request so the next one carries the new ranges.
type Aborter interface {
	Abort()
}

// Debouncer coalesces bursts of visibility changes, e.g from fast scrolling, into a single range
// commit and abort once the screen has been still for the delay.
type Debouncer struct {
	clock   clockwork.Clock
	delay   time.Duration
	tracker *Tracker
	lists   []*sync3.List
	conn    Aborter

	// guards the fields below, and is held whilst firing so two firings never interleave
	mu *sync.Mutex
	// only the timer scheduled with the current generation may fire: Stop can lose the race
	// against a timer which has already expired
	timer      clockwork.Timer
	generation uint64
	stopped    bool

	numCommits prometheus.Counter
	numAborts  prometheus.Counter
}

// NewDebouncer makes a debouncer which reads visibility from the tracker and writes ranges to
// the lists. A zero delay uses DefaultDelay, a nil clock the real clock.
func NewDebouncer(tracker *Tracker, lists []*sync3.List, conn Aborter, clock clockwork.Clock, delay time.Duration, enablePrometheus bool) *Debouncer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if delay == 0 {
		delay = DefaultDelay
	}
	d := &Debouncer{
		clock:   clock,
		delay:   delay,
		tracker: tracker,
		lists:   lists,
		conn:    conn,
		mu:      &sync.Mutex{},
	}
	if enablePrometheus {
		d.addPrometheusMetrics()
	}
	return d
}

func (d *Debouncer) addPrometheusMetrics() {
	d.numCommits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sliding_sync_client",
		Subsystem: "viewport",
		Name:      "num_range_commits",
		Help:      "Number of dynamic ranges changed by visibility changes.",
	})
	d.numAborts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sliding_sync_client",
		Subsystem: "viewport",
		Name:      "num_aborts",
		Help:      "Number of times visibility changes interrupted the sync request.",
	})
	prometheus.MustRegister(d.numCommits)
	prometheus.MustRegister(d.numAborts)
}

// Touch (re)starts the quiet period. Call it after every visibility change.
func (d *Debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || gen != d.generation {
		return
	}
	d.timer = nil
	visible := d.tracker.Visible()
	ranges := ComputeRanges(visible, ListInfos(d.lists))
	changed := Commit(ranges, d.lists)
	logger.Trace().Int("visible", len(visible)).Int("ranges", len(ranges)).Int("changed", changed).Msg("visibility settled")
	if d.numCommits != nil {
		d.numCommits.Add(float64(changed))
		d.numAborts.Inc()
	}
	d.conn.Abort()
}

// Cancel drops any pending firing. Later calls to Touch schedule as normal.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Stop cancels any pending firing and unregisters metrics. Touch does nothing after Stop.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.numCommits != nil {
		prometheus.Unregister(d.numCommits)
		prometheus.Unregister(d.numAborts)
	}
}
