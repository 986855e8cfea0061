// Package audit checks a list for states the server should never put it in. It only reports: a
// list is never corrected, so that bugs in the server stay visible.
package audit

import (
	"os"

	"github.com/matrix-org/sliding-sync-client/internal"
	"github.com/matrix-org/sliding-sync-client/sync3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// Report is the result of auditing one list.
type Report struct {
	// room ID -> every index it is at, for rooms at more than one index. Indexes ascend.
	Duplicates map[string][]int
	// indexes which hold a room but are outside every active range, ascending
	OutOfRange []int
}

// OK returns true if nothing was found.
func (r Report) OK() bool {
	return len(r.Duplicates) == 0 && len(r.OutOfRange) == 0
}

// Audit inspects a snapshot of a list. It never modifies the list.
func Audit(list sync3.ListSnapshot) Report {
	roomIDToIndexes := make(map[string][]int)
	var report Report
	for _, i := range internal.SortedKeys(list.RoomIndexToRoomID) {
		roomID := list.RoomIndexToRoomID[i]
		if roomID == "" {
			continue
		}
		roomIDToIndexes[roomID] = append(roomIDToIndexes[roomID], i)
		if !list.ActiveRanges.Inside(int64(i)) {
			report.OutOfRange = append(report.OutOfRange, i)
		}
	}
	for roomID, indexes := range roomIDToIndexes {
		if len(indexes) < 2 {
			continue
		}
		if report.Duplicates == nil {
			report.Duplicates = make(map[string][]int)
		}
		report.Duplicates[roomID] = indexes
	}
	return report
}

// Log writes one line per problem found.
func (r Report) Log(listIndex int, listName string) {
	for _, roomID := range internal.SortedKeys(r.Duplicates) {
		logger.Warn().Int("list", listIndex).Str("name", listName).Str("room", roomID).Ints("indexes", r.Duplicates[roomID]).Msg("room has duplicate indexes")
	}
	if len(r.OutOfRange) > 0 {
		logger.Warn().Int("list", listIndex).Str("name", listName).Ints("indexes", r.OutOfRange).Msg("tracking indexes outside of tracked ranges")
	}
}

// Auditor audits every list after each completed sync cycle and counts what it finds.
type Auditor struct {
	numViolations *prometheus.CounterVec
}

func NewAuditor(enablePrometheus bool) *Auditor {
	a := &Auditor{}
	if enablePrometheus {
		a.numViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sliding_sync_client",
			Subsystem: "audit",
			Name:      "num_violations",
			Help:      "Number of list consistency violations seen after sync cycles.",
		}, []string{"kind"})
		prometheus.MustRegister(a.numViolations)
	}
	return a
}

// AuditAll audits and logs every list, returning the reports in list order.
func (a *Auditor) AuditAll(lists []sync3.ListSnapshot) []Report {
	reports := make([]Report, len(lists))
	for i, list := range lists {
		reports[i] = Audit(list)
		if reports[i].OK() {
			continue
		}
		reports[i].Log(i, list.Name)
		if a.numViolations != nil {
			a.numViolations.WithLabelValues("duplicate").Add(float64(len(reports[i].Duplicates)))
			a.numViolations.WithLabelValues("out_of_range").Add(float64(len(reports[i].OutOfRange)))
		}
	}
	return reports
}

func (a *Auditor) Teardown() {
	if a.numViolations != nil {
		prometheus.Unregister(a.numViolations)
	}
}
