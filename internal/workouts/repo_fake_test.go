package workouts_test

import (
	"context"
	"sync"
	"time"

	"github.com/2beens/setpad/internal/workouts"
	"github.com/2beens/setpad/internal/workouts/ordering"
)

// repoFake keeps workouts in memory and places them with the given index, the
// same way the postgres repo does inside its transaction.
type repoFake struct {
	workouts map[string]workouts.Workout
	mutex    sync.Mutex
}

func newRepoFake(stored ...workouts.Workout) *repoFake {
	r := &repoFake{
		workouts: make(map[string]workouts.Workout),
	}
	for _, w := range stored {
		r.workouts[w.ID] = w
	}
	return r
}

func (r *repoFake) entries(except string) []ordering.Entry {
	var entries []ordering.Entry
	for _, w := range r.workouts {
		if w.ID == except {
			continue
		}
		entries = append(entries, ordering.Entry{ID: w.ID, Date: w.Date, SortOrder: w.SortOrder})
	}
	ordering.SortForDisplay(entries)
	return entries
}

func (r *repoFake) apply(assignments []ordering.Assignment) {
	for _, a := range assignments {
		w := r.workouts[a.ID]
		w.SortOrder = int64Ptr(a.SortOrder)
		r.workouts[a.ID] = w
	}
}

func (r *repoFake) Add(_ context.Context, workout workouts.Workout, ix ordering.Index) (*workouts.Workout, *ordering.Placement, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.workouts[workout.ID]; ok {
		return nil, nil, workouts.ErrWorkoutExists
	}

	placement := ix.Place(ordering.Entry{ID: workout.ID, Date: workout.Date}, r.entries(""))
	workout.SortOrder = int64Ptr(placement.SortOrder)
	workout.CreatedAt = time.Now()
	r.workouts[workout.ID] = workout
	r.apply(placement.Renumber)

	added := r.workouts[workout.ID]
	return &added, &placement, nil
}

func (r *repoFake) Update(_ context.Context, workout workouts.Workout, ix ordering.Index) (*workouts.Workout, *ordering.Placement, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	stored, ok := r.workouts[workout.ID]
	if !ok {
		return nil, nil, workouts.ErrWorkoutNotFound
	}

	workout.SortOrder = stored.SortOrder
	workout.CreatedAt = stored.CreatedAt

	var placement *ordering.Placement
	if stored.Date != workout.Date {
		p := ix.Place(ordering.Entry{ID: workout.ID, Date: workout.Date}, r.entries(workout.ID))
		placement = &p
		workout.SortOrder = int64Ptr(p.SortOrder)
	}
	r.workouts[workout.ID] = workout
	if placement != nil {
		r.apply(placement.Renumber)
	}

	updated := r.workouts[workout.ID]
	return &updated, placement, nil
}

func (r *repoFake) Delete(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.workouts[id]; !ok {
		return workouts.ErrWorkoutNotFound
	}
	delete(r.workouts, id)
	return nil
}

func (r *repoFake) Get(_ context.Context, id string) (*workouts.Workout, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	w, ok := r.workouts[id]
	if !ok {
		return nil, workouts.ErrWorkoutNotFound
	}
	return &w, nil
}

func (r *repoFake) List(_ context.Context, params workouts.ListParams) ([]workouts.Workout, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var list []workouts.Workout
	for _, e := range r.entries("") {
		w := r.workouts[e.ID]
		if params.Date != "" && w.Date != params.Date {
			continue
		}
		if params.From != "" && w.Date < params.From {
			continue
		}
		if params.To != "" && w.Date > params.To {
			continue
		}
		list = append(list, w)
	}
	return list, nil
}

func (r *repoFake) BackfillSortOrders(_ context.Context, ix ordering.Index) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	assignments := ix.Backfill(r.entries(""))
	r.apply(assignments)
	return len(assignments), nil
}

func (r *repoFake) RenumberSortOrders(_ context.Context, ix ordering.Index) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	assignments := ix.Renumber(r.entries(""))
	r.apply(assignments)
	return len(assignments), nil
}

func int64Ptr(v int64) *int64 {
	return &v
}
