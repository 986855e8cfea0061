package syncv3client

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/matrix-org/sliding-sync-client/audit"
	"github.com/matrix-org/sliding-sync-client/devtools"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

// frameWidth is how many columns a list is drawn across on /debug/frame.
const frameWidth = 80

// FrameSource provides the most recent diagnostic frame.
type FrameSource interface {
	Latest() (devtools.Frame, bool)
}

type server struct {
	chain []func(next http.Handler) http.Handler
	final http.Handler
}

func (s *server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h := s.final
	for i := range s.chain {
		h = s.chain[len(s.chain)-1-i](h)
	}
	h.ServeHTTP(w, req)
}

func allowCORS(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
		if req.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, req)
	}
}

type listsResponse struct {
	Lists   []sync3.ListSnapshot `json:"lists"`
	Reports []audit.Report       `json:"reports"`
	Error   string               `json:"error,omitempty"`
}

// NewDebugHandler serves read-only views of the client state:
//
//	GET /debug/lists            every list with its latest audit
//	GET /debug/lists/{index}    the slots of one list
//	GET /debug/rooms/{roomID}   everything known about a room
//	GET /debug/selected         the view of the selected room
//	GET /debug/frame            the latest diagnostic frame, drawn as text
//	GET /metrics                if withMetrics is set
//
// frames may be nil.
func NewDebugHandler(c *Client, frames FrameSource, withMetrics bool) http.Handler {
	r := mux.NewRouter()
	r.Handle("/debug/lists", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, 200, listsResponse{
			Lists:   c.Lists(),
			Reports: c.Reports(),
			Error:   c.Error(),
		})
	}))).Methods("GET", "OPTIONS")
	r.Handle("/debug/lists/{index}", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		index, err := strconv.Atoi(mux.Vars(req)["index"])
		if err != nil || index < 0 || index >= len(c.lists) {
			writeJSON(w, 404, map[string]string{"error": "no such list"})
			return
		}
		writeJSON(w, 200, c.Slots(index))
	}))).Methods("GET", "OPTIONS")
	r.Handle("/debug/rooms/{roomID}", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		room, ok := c.Room(mux.Vars(req)["roomID"])
		if !ok {
			writeJSON(w, 404, map[string]string{"error": "unknown room"})
			return
		}
		writeJSON(w, 200, room)
	}))).Methods("GET", "OPTIONS")
	r.Handle("/debug/selected", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, 200, c.RoomView())
	}))).Methods("GET", "OPTIONS")
	r.Handle("/debug/frame", allowCORS(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var frame devtools.Frame
		ok := false
		if frames != nil {
			frame, ok = frames.Latest()
		}
		if !ok {
			w.WriteHeader(404)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(200)
		w.Write([]byte(frame.Describe(frameWidth)))
	}))).Methods("GET", "OPTIONS")
	if withMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	return &server{
		chain: []func(next http.Handler) http.Handler{
			hlog.NewHandler(logger),
			hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
				hlog.FromRequest(r).Trace().
					Str("method", r.Method).
					Int("status", status).
					Int("size", size).
					Dur("duration", duration).
					Str("path", r.URL.Path).
					Msg("")
			}),
			hlog.RemoteAddrHandler("ip"),
		},
		final: r,
	}
}

// RunDebugServer serves h on bindAddr until the process exits.
func RunDebugServer(h http.Handler, bindAddr string) {
	logger.Info().Msgf("debug server listening on %s", bindAddr)
	if err := http.ListenAndServe(bindAddr, h); err != nil {
		logger.Fatal().Err(err).Msg("failed to listen and serve")
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	b, err := json.Marshal(body)
	if err != nil {
		logger.Err(err).Msg("failed to marshal debug response")
		w.WriteHeader(500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}
