package tracker

import (
	"fmt"
	"sort"
	"time"

	"example.com/activitytimer/internal/domain"
)

// SortKey selects the ordering of a record list.
type SortKey string

const (
	SortTimeAsc  SortKey = "time-asc"
	SortTimeDesc SortKey = "time-desc"
	SortDateAsc  SortKey = "date-asc"
	SortDateDesc SortKey = "date-desc"
)

// ParseSortKey maps a query value to a SortKey. Empty means time-asc.
func ParseSortKey(v string) (SortKey, error) {
	switch k := SortKey(v); k {
	case "":
		return SortTimeAsc, nil
	case SortTimeAsc, SortTimeDesc, SortDateAsc, SortDateDesc:
		return k, nil
	default:
		return "", fmt.Errorf("unknown sort %q", v)
	}
}

// recordedAtLayouts are the timestamp shapes seen in stored records, most common first.
var recordedAtLayouts = []string{
	RecordedAtLayout,
	"2006-01-02 15:04",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	time.RFC3339,
}

func parseRecordedAt(v string) (time.Time, bool) {
	for _, layout := range recordedAtLayouts {
		if ts, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func dateLess(a, b string) bool {
	ta, okA := parseRecordedAt(a)
	tb, okB := parseRecordedAt(b)
	switch {
	case okA && okB:
		return ta.Before(tb)
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// SortRecords orders recs in place. Ties keep their stored order.
func SortRecords(recs []domain.Record, by SortKey) {
	var less func(a, b domain.Record) bool
	switch by {
	case SortTimeDesc:
		less = func(a, b domain.Record) bool { return a.ElapsedSeconds > b.ElapsedSeconds }
	case SortDateAsc:
		less = func(a, b domain.Record) bool { return dateLess(a.RecordedAt, b.RecordedAt) }
	case SortDateDesc:
		less = func(a, b domain.Record) bool { return dateLess(b.RecordedAt, a.RecordedAt) }
	default:
		less = func(a, b domain.Record) bool { return a.ElapsedSeconds < b.ElapsedSeconds }
	}
	sort.SliceStable(recs, func(i, j int) bool { return less(recs[i], recs[j]) })
}
