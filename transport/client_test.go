package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSlidingSyncErrors(t *testing.T) {
	testCases := []struct {
		name        string
		code        int
		body        string
		wantErrCode string
	}{
		{
			name:        "matrix error",
			code:        401,
			body:        `{"errcode":"M_UNKNOWN_TOKEN","error":"Invalid macaroon passed."}`,
			wantErrCode: "M_UNKNOWN_TOKEN",
		},
		{
			name: "not json",
			code: 502,
			body: `<html>Bad Gateway</html>`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			client := NewHTTPClient(internal.ServerURL{HttpOrUnixStr: srv.URL + "/"}, time.Second)
			resp, code, err := client.DoSlidingSync(context.Background(), "token", "", time.Second, &sync3.Request{})
			assert.Nil(t, resp)
			assert.Equal(t, tc.code, code)
			var herr *internal.HandlerError
			require.True(t, errors.As(err, &herr))
			assert.Equal(t, tc.code, herr.StatusCode)
			assert.Equal(t, tc.wantErrCode, herr.ErrCode)
		})
	}
}

func TestDoSlidingSyncURL(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(200)
		w.Write([]byte(`{"pos":"7","txn_id":"abc"}`))
	}))
	defer srv.Close()
	client := NewHTTPClient(internal.ServerURL{HttpOrUnixStr: srv.URL}, time.Second)
	resp, code, err := client.DoSlidingSync(context.Background(), "token", "6 7", 1500*time.Millisecond, &sync3.Request{})
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, "7", resp.Pos)
	assert.Equal(t, "abc", resp.TxnID)
	assert.Equal(t, "pos=6+7&timeout=1500", gotQuery)
}

func TestDoSlidingSyncCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()
	client := NewHTTPClient(internal.ServerURL{HttpOrUnixStr: srv.URL}, time.Second)
	conn := NewConnection()
	ctx, finish := conn.begin(context.Background())
	defer finish()
	go func() {
		time.Sleep(20 * time.Millisecond)
		conn.Abort()
	}()
	_, _, err := client.DoSlidingSync(ctx, "token", "", time.Second, &sync3.Request{})
	assert.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestTransactionIDTracker(t *testing.T) {
	tracker := NewTransactionIDTracker()
	defer tracker.Stop()
	sentAt := time.Unix(1000, 0)
	a := tracker.New(sentAt)
	b := tracker.New(sentAt.Add(time.Second))
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, tracker.Len())

	got, ok := tracker.Done(b)
	assert.True(t, ok)
	assert.Equal(t, sentAt.Add(time.Second), got)
	_, ok = tracker.Done(b)
	assert.False(t, ok, "done twice")
	_, ok = tracker.Done("")
	assert.False(t, ok)
	_, ok = tracker.Done("unknown")
	assert.False(t, ok)
	assert.Equal(t, 1, tracker.Len())
	tracker.Stop()
}
