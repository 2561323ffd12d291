package ordering

import (
	"sort"
	"time"
)

// Backfill assigns sort orders to entries that have none, newest date first,
// leaving a DefaultStep gap between every pair. Entries with an unparseable date
// are treated as the oldest. Entries that already have a sort order are not
// touched, so running Backfill over its own output yields nothing.
func Backfill(entries []Entry) []Assignment {
	return DefaultIndex.Backfill(entries)
}

func (ix Index) Backfill(entries []Entry) []Assignment {
	var missing []Entry
	for _, e := range entries {
		if e.SortOrder == nil {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sortByParsedDateDesc(missing)
	return ix.spread(missing)
}

// Renumber reassigns uniform gaps over all entries, keeping their current
// display order. Entries without a sort order end up below their same-day
// siblings.
func Renumber(entries []Entry) []Assignment {
	return DefaultIndex.Renumber(entries)
}

func (ix Index) Renumber(entries []Entry) []Assignment {
	if len(entries) == 0 {
		return nil
	}

	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	SortForDisplay(ordered)
	return ix.spread(ordered)
}

func (ix Index) spread(ordered []Entry) []Assignment {
	step := ix.step()
	count := int64(len(ordered))
	assignments := make([]Assignment, 0, len(ordered))
	for rank, e := range ordered {
		assignments = append(assignments, Assignment{
			ID:        e.ID,
			SortOrder: (count - int64(rank)) * step,
		})
	}
	return assignments
}

func sortByParsedDateDesc(entries []Entry) {
	type dated struct {
		entry Entry
		date  time.Time
		valid bool
	}

	items := make([]dated, len(entries))
	for i, e := range entries {
		t, ok := ParseDate(e.Date)
		items[i] = dated{entry: e, date: t, valid: ok}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].valid != items[j].valid {
			return items[i].valid
		}
		if !items[i].valid {
			return false
		}
		return items[i].date.After(items[j].date)
	})

	for i := range items {
		entries[i] = items[i].entry
	}
}
