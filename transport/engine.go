package transport

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/prometheus/client_golang/prometheus"
)

// MaxBackoff is the longest the engine waits before retrying a failed request.
const MaxBackoff = 30 * time.Second

type LifecycleState int

const (
	// LifecycleSyncComplete is emitted after every list and room in a response has been handed
	// to the listeners.
	LifecycleSyncComplete LifecycleState = iota + 1
	// LifecycleSyncRequestFinished is emitted when a request finishes, with the error if it
	// failed. Aborted requests do not finish.
	LifecycleSyncRequestFinished
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleSyncComplete:
		return "SyncComplete"
	case LifecycleSyncRequestFinished:
		return "SyncRequestFinished"
	}
	return fmt.Sprintf("LifecycleState(%d)", int(s))
}

type LifecycleListener func(state LifecycleState, resp *sync3.Response, err error)

// RoomDataListener is called once per room in each response. isIncremental is false if the
// server sent the complete room.
type RoomDataListener func(roomID string, room sync3.Room, isIncremental bool)

// Engine runs the sliding sync loop: it sends the ranges and filters of every list, applies the
// list operations in the response to the lists and hands the rooms to the listeners. Listeners
// are called on the loop goroutine, one at a time.
type Engine struct {
	client  *HTTPClient
	conn    *Connection
	lists   []*sync3.List
	timeout time.Duration
	clock   clockwork.Clock
	txns    *TransactionIDTracker

	mu                 *sync.Mutex
	roomSubscription   string
	lifecycleListeners []LifecycleListener
	roomDataListeners  []RoomDataListener
	cancel             context.CancelFunc
	done               chan struct{}

	numRequests       *prometheus.CounterVec
	roundTripDuration prometheus.Histogram
}

// NewEngine makes an engine which syncs the lists. conn aborts its requests. timeout is the
// long-poll timeout sent to the server. A nil clock uses the real clock.
func NewEngine(client *HTTPClient, conn *Connection, lists []*sync3.List, timeout time.Duration, clock clockwork.Clock, enablePrometheus bool) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	e := &Engine{
		client:  client,
		conn:    conn,
		lists:   lists,
		timeout: timeout,
		clock:   clock,
		txns:    NewTransactionIDTracker(),
		mu:      &sync.Mutex{},
	}
	if enablePrometheus {
		e.addPrometheusMetrics()
	}
	return e
}

func (e *Engine) addPrometheusMetrics() {
	e.numRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sliding_sync_client",
		Subsystem: "transport",
		Name:      "num_requests",
		Help:      "Number of sliding sync requests by outcome.",
	}, []string{"outcome"})
	e.roundTripDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sliding_sync_client",
		Subsystem: "transport",
		Name:      "round_trip_duration_secs",
		Help:      "Time between sending a request and receiving its response.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 20, 30},
	})
	prometheus.MustRegister(e.numRequests)
	prometheus.MustRegister(e.roundTripDuration)
}

func (e *Engine) AddLifecycleListener(fn LifecycleListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lifecycleListeners = append(e.lifecycleListeners, fn)
}

func (e *Engine) AddRoomDataListener(fn RoomDataListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roomDataListeners = append(e.roomDataListeners, fn)
}

// SetRoomSubscription subscribes to a single room, replacing any previous subscription. The
// change is sent on the next request: abort the connection to send it now. "" unsubscribes.
func (e *Engine) SetRoomSubscription(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roomSubscription = roomID
}

func (e *Engine) RoomSubscription() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roomSubscription
}

// Start the sync loop with this access token. A running loop is stopped first.
func (e *Engine) Start(accessToken string) {
	e.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.mu.Lock()
	e.cancel = cancel
	e.done = done
	e.mu.Unlock()
	logger.Info().Msg("starting sync loop")
	go func() {
		defer close(done)
		e.loop(ctx, accessToken)
	}()
}

// Stop the sync loop. Once Stop returns no listener of that loop will be called again. Must not
// be called from a listener.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	logger.Info().Msg("terminating sync loop")
	cancel()
	<-done
}

// Teardown stops the loop and releases everything the engine holds.
func (e *Engine) Teardown() {
	e.Stop()
	e.txns.Stop()
	if e.numRequests != nil {
		prometheus.Unregister(e.numRequests)
		prometheus.Unregister(e.roundTripDuration)
	}
}

// Backoff returns how long to wait after failCount consecutive failures.
func Backoff(failCount int) time.Duration {
	if failCount <= 0 {
		return 0
	}
	if failCount >= 5 {
		return MaxBackoff
	}
	return time.Duration(math.Pow(2, float64(failCount))) * time.Second
}

type loopState struct {
	accessToken string
	pos         string
	// the room the server thinks we are subscribed to
	roomSubscription string
	failCount        int
	lastFailed       bool
	isRestart        bool
	lastRequest      *sync3.Request
}

func (e *Engine) loop(ctx context.Context, accessToken string) {
	st := &loopState{
		accessToken: accessToken,
	}
	for ctx.Err() == nil {
		if st.lastFailed {
			waitTime := Backoff(st.failCount)
			logger.Warn().Str("duration", waitTime.String()).Int("fail_count", st.failCount).Msg("waiting before next request")
			select {
			case <-ctx.Done():
				return
			case <-e.clock.After(waitTime):
			}
		}
		if !e.round(ctx, st) {
			return
		}
	}
}

// round performs one request and dispatches its response. Returns false if the loop was stopped
// or cannot continue.
func (e *Engine) round(ctx context.Context, st *loopState) bool {
	// begin before reading the lists, so an abort cannot slip between the two
	roundCtx, finish := e.conn.begin(ctx)
	defer finish()
	req, roomSub := e.buildRequest(st.roomSubscription)
	if st.isRestart && st.lastRequest != nil && req.Same(st.lastRequest) {
		logger.Trace().Msg("restarting after abort with an unchanged request")
	}
	sentAt := e.clock.Now()
	req.TxnID = e.txns.New(sentAt)
	st.lastRequest = req

	roundCtx = internal.RoundContext(internal.RequestContext(roundCtx), st.pos)
	internal.SetRequestContextRestart(roundCtx, st.pos, req.TxnID, st.isRestart)
	roundCtx, task := internal.StartTask(roundCtx, "SlidingSyncRound")
	defer task.End()
	task.SetRound(st.pos, st.isRestart, len(req.Lists))
	internal.Logf(roundCtx, "transport", "txn_id=%v", req.TxnID)

	resp, statusCode, err := e.client.DoSlidingSync(roundCtx, st.accessToken, st.pos, e.timeout, req)
	if ctx.Err() != nil {
		return false
	}
	if err != nil && errors.Is(roundCtx.Err(), context.Canceled) {
		internal.DecorateLogger(roundCtx, logger.Trace()).Msg("request aborted, restarting")
		e.countRequest("aborted")
		st.isRestart = true
		st.lastFailed = false
		return true
	}
	st.isRestart = false
	if err != nil {
		e.countRequest("error")
		task.Fail(err)
		internal.DecorateLogger(roundCtx, logger.Warn()).Int("code", statusCode).Err(err).Msg("sliding sync request failed")
		var herr *internal.HandlerError
		isHandlerError := errors.As(err, &herr)
		if isHandlerError && herr.StatusCode == 401 {
			logger.Warn().Msg("access token has been invalidated, terminating loop")
			e.emitLifecycle(roundCtx, LifecycleSyncRequestFinished, nil, err)
			return false
		}
		if isHandlerError && herr.ErrCode == ErrCodeUnknownPos && st.pos != "" {
			// the server lost the session, including our room subscription
			st.pos = ""
			st.roomSubscription = ""
			st.lastFailed = false
		} else {
			internal.GetSentryHubFromContextOrDefault(roundCtx).CaptureException(err)
			st.failCount++
			st.lastFailed = true
		}
		e.emitLifecycle(roundCtx, LifecycleSyncRequestFinished, nil, err)
		return true
	}
	e.countRequest("ok")
	st.failCount = 0
	st.lastFailed = false
	st.pos = resp.Pos
	st.roomSubscription = roomSub
	if sentAt, ok := e.txns.Done(resp.TxnID); ok && e.roundTripDuration != nil {
		e.roundTripDuration.Observe(e.clock.Since(sentAt).Seconds())
	}
	internal.SetRequestContextResponseInfo(roundCtx, resp.Pos, len(resp.Rooms), len(resp.Lists))
	internal.DecorateLogger(roundCtx, logger.Trace()).Int("ops", resp.ListOps()).Msg("sliding sync response")

	e.emitLifecycle(roundCtx, LifecycleSyncRequestFinished, resp, nil)
	e.apply(roundCtx, resp)
	e.emitLifecycle(roundCtx, LifecycleSyncComplete, resp, nil)
	return true
}

// buildRequest reads the lists and the room subscription. Returns the request and the room
// subscription the server will have if it succeeds.
func (e *Engine) buildRequest(currentRoomSub string) (*sync3.Request, string) {
	req := &sync3.Request{
		Lists: make([]sync3.RequestList, len(e.lists)),
	}
	for i, l := range e.lists {
		req.Lists[i] = l.RequestList(sync3.ListSubscription, sync3.DefaultSort)
	}
	wantRoomSub := e.RoomSubscription()
	if wantRoomSub != currentRoomSub {
		if wantRoomSub != "" {
			req.RoomSubscriptions = map[string]sync3.RoomSubscription{
				wantRoomSub: sync3.SelectedRoomSubscription,
			}
		}
		if currentRoomSub != "" {
			req.UnsubscribeRooms = []string{currentRoomSub}
		}
	}
	return req, wantRoomSub
}

func (e *Engine) apply(ctx context.Context, resp *sync3.Response) {
	ctx, span := internal.StartSpan(ctx, "apply")
	defer span.End()
	internal.Assert("response has no more lists than the request", len(resp.Lists) <= len(e.lists))
	for i, list := range resp.Lists {
		if i >= len(e.lists) {
			break
		}
		e.lists[i].ApplyResponse(list)
	}
	e.mu.Lock()
	listeners := append([]RoomDataListener(nil), e.roomDataListeners...)
	e.mu.Unlock()
	for _, roomID := range internal.SortedKeys(resp.Rooms) {
		room := resp.Rooms[roomID]
		for _, fn := range listeners {
			e.safely(ctx, func() {
				fn(roomID, room, !room.Initial)
			})
		}
	}
}

func (e *Engine) emitLifecycle(ctx context.Context, state LifecycleState, resp *sync3.Response, err error) {
	e.mu.Lock()
	listeners := append([]LifecycleListener(nil), e.lifecycleListeners...)
	e.mu.Unlock()
	for _, fn := range listeners {
		e.safely(ctx, func() {
			fn(state, resp, err)
		})
	}
}

// safely calls a listener, turning panics into logs so one bad payload cannot kill the loop.
func (e *Engine) safely(ctx context.Context, fn func()) {
	defer func() {
		panicErr := recover()
		if panicErr != nil {
			logger.Error().Str("panic", fmt.Sprint(panicErr)).Msg(string(debug.Stack()))
			internal.GetSentryHubFromContextOrDefault(ctx).RecoverWithContext(ctx, panicErr)
		}
	}()
	fn()
}

func (e *Engine) countRequest(outcome string) {
	if e.numRequests != nil {
		e.numRequests.WithLabelValues(outcome).Inc()
	}
}
