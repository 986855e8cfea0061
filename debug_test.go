package syncv3client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/sliding-sync-client/devtools"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/matrix-org/sliding-sync-client/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doGet(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestDebugHandler(t *testing.T) {
	c, lists, _, _, _ := newTestClient(t, clockwork.NewFakeClock())
	syncList(lists[0], 2, "!a", "!b")
	c.OnRoomData("!a", sync3.Room{Name: internal.Some("Room A")}, false)
	c.OnLifecycle(transport.LifecycleSyncComplete, &sync3.Response{}, nil)

	frames := devtools.NewRecorder(nil, clockwork.NewFakeClock())
	h := NewDebugHandler(c, frames, false)

	w := doGet(t, h, "/debug/lists")
	require.Equal(t, 200, w.Code)
	var lr struct {
		Lists []struct {
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"lists"`
		Reports []json.RawMessage `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	require.Len(t, lr.Lists, 2)
	assert.Equal(t, "Direct Messages", lr.Lists[0].Name)
	assert.Equal(t, 2, lr.Lists[0].Count)
	assert.Len(t, lr.Reports, 2)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = doGet(t, h, "/debug/lists/0")
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"Name":"Room A"`)
	assert.Equal(t, 404, doGet(t, h, "/debug/lists/5").Code)
	assert.Equal(t, 404, doGet(t, h, "/debug/lists/nope").Code)

	w = doGet(t, h, "/debug/rooms/!a")
	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"RoomID":"!a"`)
	assert.Equal(t, 404, doGet(t, h, "/debug/rooms/!unknown").Code)

	assert.Equal(t, 200, doGet(t, h, "/debug/selected").Code)

	// nothing recorded yet
	assert.Equal(t, 404, doGet(t, h, "/debug/frame").Code)
	frames.Record(c.Lists(), nil)
	w = doGet(t, h, "/debug/frame")
	require.Equal(t, 200, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Direct Messages  count=2"), w.Body.String())

	// metrics are off
	assert.Equal(t, 404, doGet(t, h, "/metrics").Code)
}

func TestDebugHandlerWithoutFrames(t *testing.T) {
	c, _, _, _, _ := newTestClient(t, clockwork.NewFakeClock())
	h := NewDebugHandler(c, nil, false)
	assert.Equal(t, 404, doGet(t, h, "/debug/frame").Code)
}
