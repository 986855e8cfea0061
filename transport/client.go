// Package transport runs the sliding sync long-poll loop against a sliding sync server and hands
// the results to listeners.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

const SyncPath = "/_matrix/client/unstable/org.matrix.msc3575/sync"

// ErrCodeUnknownPos is returned by the server when it has forgotten our position, e.g after a
// restart. The client must start again without a position.
const ErrCodeUnknownPos = "M_UNKNOWN_POS"

var ClientVersion = ""

// HTTPClient sends sliding sync requests. One client can be shared between engines.
type HTTPClient struct {
	Client            *http.Client
	DestinationServer string
}

// NewHTTPClient makes a client for the server. Requests are traced with OpenTelemetry. The
// client gives up on a request once it has taken longPollTimeout plus a grace period.
func NewHTTPClient(serverURL internal.ServerURL, longPollTimeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(serverURL.RoundTripper()),
			Timeout:   longPollTimeout + 30*time.Second,
		},
		DestinationServer: serverURL.BaseURL(),
	}
}

// DoSlidingSync performs one sliding sync request. Returns the response and the response status
// code, or an error. Non-200 responses return an *internal.HandlerError.
func (v *HTTPClient) DoSlidingSync(ctx context.Context, accessToken, pos string, timeout time.Duration, reqBody *sync3.Request) (*sync3.Response, int, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("DoSlidingSync: failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", v.syncURL(pos, timeout), bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("DoSlidingSync: NewRequest failed: %w", err)
	}
	req.Header.Set("User-Agent", "sliding-sync-client-"+ClientVersion)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	res, err := v.Client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("DoSlidingSync: request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		resBody, _ := io.ReadAll(res.Body)
		return nil, res.StatusCode, internal.NewHandlerError(res.StatusCode, resBody)
	}
	var resp sync3.Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, 200, fmt.Errorf("DoSlidingSync: response body decode JSON failed: %w", err)
	}
	return &resp, 200, nil
}

func (v *HTTPClient) syncURL(pos string, timeout time.Duration) string {
	qps := url.Values{}
	qps.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	if pos != "" {
		qps.Set("pos", pos)
	}
	return v.DestinationServer + SyncPath + "?" + qps.Encode()
}
