package viewport

import (
	"github.com/matrix-org/sliding-sync-client/sync3"
)

// BufferRange is how many positions either side of the visible slots are also requested, so
// rooms scrolled into view are usually already loaded.
const BufferRange = 5

// Range is an inclusive [start,end] window of positions in a list.
type Range [2]int64

// ListInfo is what the range computation needs to know about a list.
type ListInfo struct {
	JoinedCount int
}

// ListInfos reads the current counts of each list.
func ListInfos(lists []*sync3.List) []ListInfo {
	infos := make([]ListInfo, len(lists))
	for i, l := range lists {
		infos[i] = ListInfo{JoinedCount: l.JoinedCount()}
	}
	return infos
}

// ComputeRanges returns the dynamic window for each list with visible slots, keyed by list index.
//
// The window spans the lowest to highest visible position, widened by BufferRange and clamped to
// the list. Lists whose window ends inside the static prefix get no window, as the prefix is
// always requested. Otherwise the window starts at the end of the prefix at the earliest, so the
// two never overlap.
func ComputeRanges(visible []Key, lists []ListInfo) map[int]Range {
	minMax := make(map[int]Range)
	for _, k := range visible {
		if k.ListIndex < 0 || k.ListIndex >= len(lists) {
			logger.Warn().Int("list", k.ListIndex).Int("index", k.RoomIndex).Msg("ComputeRanges: visible slot in unknown list")
			continue
		}
		i := int64(k.RoomIndex)
		mm, ok := minMax[k.ListIndex]
		if !ok {
			minMax[k.ListIndex] = Range{i, i}
			continue
		}
		if i < mm[0] {
			mm[0] = i
		}
		if i > mm[1] {
			mm[1] = i
		}
		minMax[k.ListIndex] = mm
	}

	result := make(map[int]Range, len(minMax))
	for listIndex, mm := range minMax {
		start := mm[0] - BufferRange
		if start < 0 {
			start = 0
		}
		end := mm[1] + BufferRange
		if maxIndex := int64(lists[listIndex].JoinedCount) - 1; end > maxIndex {
			end = maxIndex
		}
		if end <= sync3.StaticRangeEnd {
			continue
		}
		if start < sync3.StaticRangeEnd {
			start = sync3.StaticRangeEnd
		}
		if start > end {
			// the list shrank under the visible slots
			continue
		}
		result[listIndex] = Range{start, end}
	}
	return result
}

// Commit writes each range into the dynamic slot of its list. Returns how many lists changed.
func Commit(ranges map[int]Range, lists []*sync3.List) int {
	changed := 0
	for listIndex, r := range ranges {
		if listIndex < 0 || listIndex >= len(lists) {
			continue
		}
		if lists[listIndex].SetDynamicRange([2]int64(r)) {
			changed++
			logger.Trace().Int("list", listIndex).Int64("start", r[0]).Int64("end", r[1]).Msg("committed range")
		}
	}
	return changed
}
