// Package devtools records the state of every list after each sync cycle for offline inspection.
// Nothing recorded here is ever read back by the client.
package devtools

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/jonboulle/clockwork"
	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// Frame is the state after one sync cycle.
type Frame struct {
	Seq        int64       `cbor:"1,keyasint"`
	RecordedAt int64       `cbor:"2,keyasint"` // unix millis
	Pos        string      `cbor:"3,keyasint,omitempty"`
	TxnID      string      `cbor:"4,keyasint,omitempty"`
	Lists      []ListFrame `cbor:"5,keyasint,omitempty"`
	// rooms in the response, ascending
	RoomIDs []string `cbor:"6,keyasint,omitempty"`
	NumOps  int      `cbor:"7,keyasint,omitempty"`
	// rooms the list operations in the response placed, in op order
	PlacedRoomIDs []string `cbor:"8,keyasint,omitempty"`
}

type ListFrame struct {
	Name              string         `cbor:"1,keyasint"`
	Count             int            `cbor:"2,keyasint"`
	Ranges            [][2]int64     `cbor:"3,keyasint,omitempty"`
	RoomIndexToRoomID map[int]string `cbor:"4,keyasint,omitempty"`
}

// Recorder appends a CBOR encoded Frame to a writer for every recorded cycle, and remembers the
// latest frame.
type Recorder struct {
	clock clockwork.Clock

	mu     *sync.Mutex
	enc    *cbor.Encoder
	seq    int64
	latest *Frame
}

// NewRecorder writes frames to w. If w is nil, only the latest frame is kept.
func NewRecorder(w io.Writer, clock clockwork.Clock) *Recorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	r := &Recorder{
		clock: clock,
		mu:    &sync.Mutex{},
	}
	if w != nil {
		r.enc = cbor.NewEncoder(w)
	}
	return r
}

// Record the lists as they are after the response was applied. Failures are logged.
func (r *Recorder) Record(lists []sync3.ListSnapshot, resp *sync3.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	frame := &Frame{
		Seq:        r.seq,
		RecordedAt: r.clock.Now().UnixMilli(),
		Lists:      make([]ListFrame, len(lists)),
	}
	for i, l := range lists {
		frame.Lists[i] = ListFrame{
			Name:              l.Name,
			Count:             l.JoinedCount,
			Ranges:            l.ActiveRanges,
			RoomIndexToRoomID: l.RoomIndexToRoomID,
		}
	}
	if resp != nil {
		frame.Pos = resp.Pos
		frame.TxnID = resp.TxnID
		frame.RoomIDs = internal.SortedKeys(resp.Rooms)
		frame.NumOps = resp.ListOps()
		for _, l := range resp.Lists {
			for _, op := range l.Ops {
				frame.PlacedRoomIDs = append(frame.PlacedRoomIDs, op.IncludedRoomIDs()...)
			}
		}
	}
	r.latest = frame
	if r.enc == nil {
		return
	}
	if err := r.enc.Encode(frame); err != nil {
		logger.Err(err).Int64("seq", frame.Seq).Msg("failed to record frame")
	}
}

// Latest returns the most recently recorded frame, and false if nothing has been recorded.
func (r *Recorder) Latest() (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil {
		return Frame{}, false
	}
	return *r.latest, true
}

// ReadFrames decodes every frame written by a Recorder.
func ReadFrames(rd io.Reader) ([]Frame, error) {
	dec := cbor.NewDecoder(rd)
	var frames []Frame
	for {
		var f Frame
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("ReadFrames: frame %d: %w", len(frames), err)
		}
		frames = append(frames, f)
	}
}

// Describe draws each list of the frame on one line: which indexes are tracked, which of those
// hold a known room and where the active ranges lie. width is the number of columns the list's
// count is scaled to.
//
//	Direct Messages  count=60  [0,19] [20,35]
//	|####################################----------------------|
func (f Frame) Describe(width int) string {
	var sb strings.Builder
	for _, l := range f.Lists {
		fmt.Fprintf(&sb, "%s  count=%d ", l.Name, l.Count)
		for _, r := range l.Ranges {
			fmt.Fprintf(&sb, " [%d,%d]", r[0], r[1])
		}
		sb.WriteString("\n|")
		if l.Count > 0 && width > 0 {
			cols := make([]byte, width)
			for i := range cols {
				cols[i] = ' '
			}
			scale := func(i int64) int {
				c := int(i * int64(width) / int64(l.Count))
				if c >= width {
					c = width - 1
				}
				return c
			}
			for _, r := range l.Ranges {
				for c := scale(r[0]); c <= scale(r[1]); c++ {
					cols[c] = '-'
				}
			}
			for i := range l.RoomIndexToRoomID {
				cols[scale(int64(i))] = '#'
			}
			sb.Write(cols)
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}
