package workouts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/setpad/internal/workouts/ordering"
)

const DefaultWeightUnit = "lbs"

var (
	ErrWorkoutNotFound = errors.New("workout not found")
	ErrWorkoutExists   = errors.New("workout already exists")
	ErrInvalidWorkout  = errors.New("invalid workout")
	ErrOrderingBusy    = errors.New("workout ordering busy, try again")
)

// Workout is a single logged session. Date is kept as the string the client
// sent, it is not required to be a valid calendar date.
type Workout struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Date      string     `json:"date"`
	SortOrder *int64     `json:"sortOrder"`
	Exercises []Exercise `json:"exercises"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Exercise struct {
	ID          int    `json:"id"`
	MuscleGroup string `json:"muscleGroup"`
	Name        string `json:"name"`
	Notes       string `json:"notes"`
	ShowNotes   bool   `json:"showNotes"`
	WeightUnit  string `json:"weightUnit"`
	Sets        []Set  `json:"sets"`
}

// Set keeps reps and weight as text, values like "8-10" or "BW+20" are fine.
type Set struct {
	ID     int    `json:"id"`
	Reps   string `json:"reps"`
	Weight string `json:"weight"`
}

func (w *Workout) Validate() error {
	w.Date = strings.TrimSpace(w.Date)
	if w.Date == "" {
		return fmt.Errorf("%w: date empty", ErrInvalidWorkout)
	}
	for i := range w.Exercises {
		ex := &w.Exercises[i]
		if strings.TrimSpace(ex.Name) == "" {
			return fmt.Errorf("%w: exercise %d has no name", ErrInvalidWorkout, i)
		}
		if ex.WeightUnit == "" {
			ex.WeightUnit = DefaultWeightUnit
		}
	}
	return nil
}

// HasValidDate reports whether the date parses as YYYY-MM-DD.
func (w *Workout) HasValidDate() bool {
	_, ok := ordering.ParseDate(w.Date)
	return ok
}

func (w *Workout) SetsCount() int {
	count := 0
	for _, ex := range w.Exercises {
		count += len(ex.Sets)
	}
	return count
}

func (w *Workout) entry() ordering.Entry {
	return ordering.Entry{
		ID:        w.ID,
		Date:      w.Date,
		SortOrder: w.SortOrder,
	}
}

type ListParams struct {
	// Date filters a single day, From and To an inclusive range of days.
	Date string
	From string
	To   string
}

func (p ListParams) Validate() error {
	for _, d := range []string{p.Date, p.From, p.To} {
		if d == "" {
			continue
		}
		if _, ok := ordering.ParseDate(d); !ok {
			return fmt.Errorf("%w: date filter %q not in YYYY-MM-DD format", ErrInvalidWorkout, d)
		}
	}
	if p.Date != "" && (p.From != "" || p.To != "") {
		return fmt.Errorf("%w: date and range filters are exclusive", ErrInvalidWorkout)
	}
	return nil
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Created []string      `json:"created"`
	Skipped []string      `json:"skipped"`
	Failed  []ImportError `json:"failed"`
}

type ImportError struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}
