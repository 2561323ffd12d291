// Package ordering maintains the sort_order column of workouts so that a single
// descending scan over (date, sort_order) lists them newest first, without
// renumbering existing workouts on every insert.
//
// New positions are picked from numeric gaps left between neighbours (steps of
// DefaultStep at the ends, midpoints in between). Once a gap between two
// neighbours collapses, Compute returns a value that may tie with a neighbour;
// Place reports that and can hand back a full renumbering.
package ordering

import (
	"math"
	"sort"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	DefaultStep = int64(1000)
)

// Entry is the part of a workout the index looks at.
// A nil SortOrder means the workout was never placed (legacy data).
type Entry struct {
	ID        string
	Date      string
	SortOrder *int64
}

// Assignment is a sort order to be written for the workout with the given ID.
type Assignment struct {
	ID        string
	SortOrder int64
}

// Placement is the outcome of placing a single workout.
type Placement struct {
	SortOrder int64
	// MalformedDate is set when the target date did not parse and the workout
	// was put at the logical end of the list.
	MalformedDate bool
	// GapExhausted is set when no free integer was left at the workout's
	// position, so its sort order ties with or jumps over a neighbour.
	GapExhausted bool
	// Renumber, when not empty, holds new sort orders for every workout
	// (including the placed one) and must be applied together with the insert.
	Renumber []Assignment
}

type Index struct {
	Step                  int64
	RebalanceOnExhaustion bool
}

var DefaultIndex = Index{Step: DefaultStep}

func NewIndex(step int64, rebalanceOnExhaustion bool) Index {
	if step <= 1 {
		step = DefaultStep
	}
	return Index{
		Step:                  step,
		RebalanceOnExhaustion: rebalanceOnExhaustion,
	}
}

// ComputeSortOrder computes the sort order for a workout dated targetDate using
// the default step.
func ComputeSortOrder(targetDate string, existing []Entry) int64 {
	return DefaultIndex.Compute(targetDate, existing)
}

func ParseDate(date string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Compute returns the sort order a workout dated targetDate should get, given
// all the workouts already stored.
func (ix Index) Compute(targetDate string, existing []Entry) int64 {
	return ix.place(targetDate, existing).SortOrder
}

// Place computes the sort order for record and, if the index rebalances on
// gap exhaustion, a renumbering of all workouts with the record included.
// existing must not contain record itself.
func (ix Index) Place(record Entry, existing []Entry) Placement {
	p := ix.place(record.Date, existing)
	if !p.GapExhausted || !ix.RebalanceOnExhaustion {
		return p
	}

	sortOrder := p.SortOrder
	all := make([]Entry, 0, len(existing)+1)
	all = append(all, existing...)
	all = append(all, Entry{ID: record.ID, Date: record.Date, SortOrder: &sortOrder})
	p.Renumber = ix.Renumber(all)
	for _, a := range p.Renumber {
		if a.ID == record.ID {
			p.SortOrder = a.SortOrder
			break
		}
	}
	return p
}

func (ix Index) step() int64 {
	if ix.Step <= 1 {
		return DefaultStep
	}
	return ix.Step
}

func (ix Index) place(targetDate string, existing []Entry) Placement {
	target, ok := ParseDate(targetDate)
	if !ok {
		maxOrder, found := maxSortOrder(existing)
		if !found {
			return Placement{SortOrder: 1, MalformedDate: true}
		}
		return Placement{SortOrder: maxOrder + 1, MalformedDate: true}
	}

	ordered := positioned(existing)
	SortForDisplay(ordered)
	if len(ordered) == 0 {
		return Placement{SortOrder: 1}
	}

	lo, hi := 0, len(ordered)
	for lo < hi {
		mid := lo + (hi-lo)/2
		midDate, _ := ParseDate(ordered[mid].Date)
		switch {
		case target.After(midDate):
			hi = mid
		case target.Before(midDate):
			lo = mid + 1
		default:
			return sameDatePlacement(ordered, mid)
		}
	}

	step := ix.step()
	switch {
	case lo == 0:
		return Placement{SortOrder: *ordered[0].SortOrder + step}
	case lo >= len(ordered):
		last := *ordered[len(ordered)-1].SortOrder
		if last <= step {
			return Placement{SortOrder: 1, GapExhausted: last <= 1}
		}
		return Placement{SortOrder: last - step}
	}

	prev := *ordered[lo-1].SortOrder
	next := *ordered[lo].SortOrder
	if prev-next > 1 {
		return Placement{SortOrder: next + (prev-next)/2}
	}
	return Placement{SortOrder: prev - 1, GapExhausted: true}
}

// SortForDisplay sorts entries the way the store lists them:
// date descending, then sort order descending, nulls last.
func SortForDisplay(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date > entries[j].Date
		}
		return orderOrMin(entries[i].SortOrder) > orderOrMin(entries[j].SortOrder)
	})
}

func orderOrMin(sortOrder *int64) int64 {
	if sortOrder == nil {
		return math.MinInt64
	}
	return *sortOrder
}

// positioned returns the entries that have a chronological position: a sort
// order and a parseable date. The rest are skipped by the search.
func positioned(entries []Entry) []Entry {
	res := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.SortOrder == nil {
			continue
		}
		if _, ok := ParseDate(e.Date); !ok {
			continue
		}
		res = append(res, e)
	}
	return res
}

func maxSortOrder(entries []Entry) (int64, bool) {
	var maxOrder int64
	found := false
	for _, e := range entries {
		if e.SortOrder == nil {
			continue
		}
		if !found || *e.SortOrder > maxOrder {
			maxOrder = *e.SortOrder
			found = true
		}
	}
	return maxOrder, found
}

// sameDatePlacement appends after the same-day entries around ordered[at].
// The new value runs out of room when it reaches the oldest entry of the next
// newer day.
func sameDatePlacement(ordered []Entry, at int) Placement {
	first := at
	for first > 0 && ordered[first-1].Date == ordered[at].Date {
		first--
	}

	sortOrder := *ordered[first].SortOrder + 1
	exhausted := first > 0 && sortOrder >= *ordered[first-1].SortOrder
	return Placement{SortOrder: sortOrder, GapExhausted: exhausted}
}
