// Package window selects the measurements captured inside a time interval.
//
// Measurement ids are assigned in write order, so a time interval maps to a
// contiguous id range. The selector finds the tightest id range consistent with
// the interval and returns the measurements inside it, whatever order the store
// returned them in.
package window

import (
	"cmp"
	"slices"
	"sort"
	"time"

	"github.com/lox/dripline/internal/models"
)

// DefaultLookback is the implicit training window used by decision cycles.
const DefaultLookback = 24 * time.Hour

type boundState int

const (
	unbounded boundState = iota // no bound requested
	found                       // a measurement defines the bound
	notFound                    // bound requested but nothing reaches it
)

type bound struct {
	state boundState
	id    int64
}

// Index is a measurement snapshot sorted by timestamp, reusable for several
// selections within one cycle.
type Index struct {
	sorted []models.Measurement
}

// NewIndex sorts a copy of all by timestamp. all is not modified.
func NewIndex(all []models.Measurement) *Index {
	sorted := slices.Clone(all)
	slices.SortStableFunc(sorted, func(a, b models.Measurement) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return &Index{sorted: sorted}
}

// Len reports how many measurements the index holds.
func (x *Index) Len() int { return len(x.sorted) }

// Select returns the measurements strictly between start and end, ascending by id.
func (x *Index) Select(start, end time.Time) []models.Measurement {
	return x.selectRange(x.lower(start), x.upper(end))
}

// Since returns the measurements strictly after start, ascending by id.
func (x *Index) Since(start time.Time) []models.Measurement {
	return x.selectRange(x.lower(start), bound{state: unbounded})
}

// lower returns the smallest id strictly after start: one past the largest id
// captured at or before start.
func (x *Index) lower(start time.Time) bound {
	n := sort.Search(len(x.sorted), func(i int) bool {
		return x.sorted[i].Timestamp.After(start)
	})
	if n == 0 {
		return bound{state: notFound}
	}
	var maxID int64
	for _, m := range x.sorted[:n] {
		maxID = max(maxID, m.ID)
	}
	return bound{state: found, id: maxID + 1}
}

// upper returns the largest id strictly before end: one before the smallest
// id captured at or after end.
func (x *Index) upper(end time.Time) bound {
	n := sort.Search(len(x.sorted), func(i int) bool {
		return !x.sorted[i].Timestamp.Before(end)
	})
	if n == len(x.sorted) {
		return bound{state: notFound}
	}
	minID := x.sorted[n].ID
	for _, m := range x.sorted[n+1:] {
		minID = min(minID, m.ID)
	}
	return bound{state: found, id: minID - 1}
}

func (x *Index) selectRange(first, last bound) []models.Measurement {
	var out []models.Measurement
	for _, m := range x.sorted {
		if first.state == found && m.ID < first.id {
			continue
		}
		// A requested end that nothing reaches excludes nothing: every stored
		// measurement is before it.
		if last.state == found && m.ID > last.id {
			continue
		}
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b models.Measurement) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Select returns the measurements of all captured strictly between start and end.
func Select(all []models.Measurement, start, end time.Time) []models.Measurement {
	return NewIndex(all).Select(start, end)
}

// Since returns the measurements of all captured strictly after start.
func Since(all []models.Measurement, start time.Time) []models.Measurement {
	return NewIndex(all).Since(start)
}

// LastDay returns the measurements of the 24 hours before now.
func LastDay(all []models.Measurement, now time.Time) []models.Measurement {
	return Since(all, now.Add(-DefaultLookback))
}
