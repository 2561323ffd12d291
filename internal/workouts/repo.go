package workouts

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/setpad/internal/telemetry/tracing"
	"github.com/2beens/setpad/internal/workouts/ordering"
	"github.com/2beens/setpad/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

// orderingLockKey guards every read-compute-write of sort orders. A single key
// for the whole table: workouts of different dates can compete for the same gap.
const orderingLockKey = int64(0x5e7_9ad)

const orderingLockTimeout = "5s"

const listOrderBy = `ORDER BY date DESC, sort_order DESC NULLS LAST, created_at DESC`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// inOrderingTx runs fn in a transaction holding the ordering lock.
func (r *Repo) inOrderingTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
				err = fmt.Errorf("failed to rollback transaction: %w: %w", rollbackErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%s'", orderingLockTimeout)); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, orderingLockKey); err != nil {
		if pkg.IsLockNotAvailableError(err) {
			return ErrOrderingBusy
		}
		return fmt.Errorf("acquire ordering lock: %w", err)
	}

	return fn(tx)
}

// Add stores a new workout, placing it with ix among all stored workouts.
func (r *Repo) Add(ctx context.Context, workout Workout, ix ordering.Index) (_ *Workout, _ *ordering.Placement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workout.ID))
	span.SetAttributes(attribute.String("workout.date", workout.Date))

	var placement ordering.Placement
	err = r.inOrderingTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workout WHERE id = $1)`, workout.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check workout exists: %w", err)
		}
		if exists {
			return ErrWorkoutExists
		}

		entries, err := listEntries(ctx, tx)
		if err != nil {
			return err
		}

		placement = ix.Place(workout.entry(), entries)
		workout.SortOrder = &placement.SortOrder

		if err := tx.QueryRow(ctx, `
			INSERT INTO workout (id, name, date, sort_order)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`,
			workout.ID, workout.Name, workout.Date, workout.SortOrder,
		).Scan(&workout.CreatedAt); err != nil {
			if pkg.IsUniqueViolationError(err) {
				return ErrWorkoutExists
			}
			return fmt.Errorf("insert workout: %w", err)
		}

		if err := insertExercises(ctx, tx, &workout); err != nil {
			return err
		}

		return applyAssignments(ctx, tx, placement.Renumber)
	})
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(attribute.Int64("workout.sort_order", placement.SortOrder))
	span.SetAttributes(attribute.Bool("ordering.gap_exhausted", placement.GapExhausted))
	span.SetAttributes(attribute.Int("ordering.renumbered", len(placement.Renumber)))

	return &workout, &placement, nil
}

// Update replaces a stored workout. The sort order is recomputed only when the
// date changed; the returned placement is nil otherwise.
func (r *Repo) Update(ctx context.Context, workout Workout, ix ordering.Index) (_ *Workout, _ *ordering.Placement, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", workout.ID))

	var placement *ordering.Placement
	err = r.inOrderingTx(ctx, func(tx pgx.Tx) error {
		var storedDate string
		if err := tx.QueryRow(ctx, `
			SELECT date, sort_order, created_at FROM workout WHERE id = $1 FOR UPDATE
		`, workout.ID).Scan(&storedDate, &workout.SortOrder, &workout.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWorkoutNotFound
			}
			return fmt.Errorf("get stored workout: %w", err)
		}

		if storedDate != workout.Date {
			entries, err := listEntries(ctx, tx)
			if err != nil {
				return err
			}
			others := entries[:0]
			for _, e := range entries {
				if e.ID != workout.ID {
					others = append(others, e)
				}
			}

			p := ix.Place(workout.entry(), others)
			placement = &p
			workout.SortOrder = &p.SortOrder
		}

		if _, err := tx.Exec(ctx, `
			UPDATE workout SET name = $1, date = $2, sort_order = $3 WHERE id = $4
		`, workout.Name, workout.Date, workout.SortOrder, workout.ID); err != nil {
			return fmt.Errorf("update workout: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM workout_exercise WHERE workout_id = $1`, workout.ID); err != nil {
			return fmt.Errorf("delete workout exercises: %w", err)
		}
		if err := insertExercises(ctx, tx, &workout); err != nil {
			return err
		}

		if placement != nil {
			return applyAssignments(ctx, tx, placement.Renumber)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	span.SetAttributes(attribute.Bool("ordering.recomputed", placement != nil))
	return &workout, placement, nil
}

// Delete removes a workout with its exercises and sets. Other workouts keep
// their sort orders.
func (r *Repo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM workout WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	rows, err := r.db.Query(ctx, `
		SELECT id, name, date, sort_order, created_at
		FROM workout
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}

	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, err
	}
	if len(workouts) == 0 {
		return nil, ErrWorkoutNotFound
	}

	if err := loadExercises(ctx, r.db, workouts); err != nil {
		return nil, err
	}
	return &workouts[0], nil
}

// List returns workouts newest first, the way they are displayed.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("date", params.Date),
		attribute.String("from", params.From),
		attribute.String("to", params.To),
	)

	rows, err := r.db.Query(ctx, `
		SELECT id, name, date, sort_order, created_at
		FROM workout
		WHERE ($1::varchar = '' OR date = $1)
		  AND ($2::varchar = '' OR date >= $2)
		  AND ($3::varchar = '' OR date <= $3)
		  AND (($2::varchar = '' AND $3::varchar = '') OR date ~ '^[0-9]{4}-[0-9]{2}-[0-9]{2}$')
		`+listOrderBy,
		params.Date, params.From, params.To,
	)
	if err != nil {
		return nil, err
	}

	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, err
	}

	if err := loadExercises(ctx, r.db, workouts); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))
	return workouts, nil
}

// ListEntries returns the ordering-relevant part of all workouts, in display order.
func (r *Repo) ListEntries(ctx context.Context) (_ []ordering.Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list-entries")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return listEntries(ctx, r.db)
}

// BackfillSortOrders assigns sort orders to workouts that have none and
// returns how many were updated. Running it again updates nothing.
func (r *Repo) BackfillSortOrders(ctx context.Context, ix ordering.Index) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.backfill-sort-orders")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var updated int
	err = r.inOrderingTx(ctx, func(tx pgx.Tx) error {
		entries, err := listEntries(ctx, tx)
		if err != nil {
			return err
		}
		assignments := ix.Backfill(entries)
		updated = len(assignments)
		return applyAssignments(ctx, tx, assignments)
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("workouts.updated", updated))
	return updated, nil
}

// RenumberSortOrders spreads the sort orders of all workouts evenly again,
// keeping the display order.
func (r *Repo) RenumberSortOrders(ctx context.Context, ix ordering.Index) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.renumber-sort-orders")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var updated int
	err = r.inOrderingTx(ctx, func(tx pgx.Tx) error {
		entries, err := listEntries(ctx, tx)
		if err != nil {
			return err
		}
		assignments := ix.Renumber(entries)
		updated = len(assignments)
		return applyAssignments(ctx, tx, assignments)
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("workouts.updated", updated))
	return updated, nil
}

func listEntries(ctx context.Context, q querier) ([]ordering.Entry, error) {
	rows, err := q.Query(ctx, `SELECT id, date, sort_order FROM workout `+listOrderBy)
	if err != nil {
		return nil, fmt.Errorf("list ordering entries: %w", err)
	}
	defer rows.Close()

	var entries []ordering.Entry
	for rows.Next() {
		var e ordering.Entry
		if err := rows.Scan(&e.ID, &e.Date, &e.SortOrder); err != nil {
			return nil, fmt.Errorf("scan ordering entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ordering entries: %w", err)
	}
	return entries, nil
}

func applyAssignments(ctx context.Context, tx pgx.Tx, assignments []ordering.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	ids := make([]string, 0, len(assignments))
	sortOrders := make([]int64, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
		sortOrders = append(sortOrders, a.SortOrder)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE workout w
		SET sort_order = a.sort_order
		FROM unnest($1::varchar[], $2::bigint[]) AS a(id, sort_order)
		WHERE w.id = a.id
	`, ids, sortOrders)
	if err != nil {
		return fmt.Errorf("apply sort orders: %w", err)
	}
	if int(tag.RowsAffected()) != len(assignments) {
		return fmt.Errorf("apply sort orders: updated %d of %d workouts", tag.RowsAffected(), len(assignments))
	}
	return nil
}

func insertExercises(ctx context.Context, tx pgx.Tx, workout *Workout) error {
	for i := range workout.Exercises {
		ex := &workout.Exercises[i]
		if err := tx.QueryRow(ctx, `
			INSERT INTO workout_exercise
				(workout_id, position, muscle_group, name, notes, show_notes, weight_unit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`,
			workout.ID, i, ex.MuscleGroup, ex.Name, ex.Notes, ex.ShowNotes, ex.WeightUnit,
		).Scan(&ex.ID); err != nil {
			return fmt.Errorf("insert exercise %d: %w", i, err)
		}

		if len(ex.Sets) == 0 {
			continue
		}

		batch := &pgx.Batch{}
		for j := range ex.Sets {
			s := &ex.Sets[j]
			batch.Queue(`
				INSERT INTO workout_set (exercise_id, position, reps, weight)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, ex.ID, j, s.Reps, s.Weight).QueryRow(func(row pgx.Row) error {
				return row.Scan(&s.ID)
			})
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert sets of exercise %d: %w", i, err)
		}
	}
	return nil
}

// loadExercises fills in the exercises and sets of the given workouts.
func loadExercises(ctx context.Context, q querier, workouts []Workout) error {
	if len(workouts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(workouts))
	byID := make(map[string]*Workout, len(workouts))
	for i := range workouts {
		ids = append(ids, workouts[i].ID)
		byID[workouts[i].ID] = &workouts[i]
		workouts[i].Exercises = []Exercise{}
	}

	rows, err := q.Query(ctx, `
		SELECT e.workout_id, e.id, e.muscle_group, e.name, e.notes, e.show_notes, e.weight_unit,
		       s.id, s.reps, s.weight
		FROM workout_exercise e
		LEFT JOIN workout_set s ON s.exercise_id = e.id
		WHERE e.workout_id = ANY($1)
		ORDER BY e.workout_id, e.position, s.position
	`, ids)
	if err != nil {
		return fmt.Errorf("load exercises: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			workoutID string
			ex        Exercise
			setID     *int
			reps      *string
			weight    *string
		)
		if err := rows.Scan(
			&workoutID, &ex.ID, &ex.MuscleGroup, &ex.Name, &ex.Notes, &ex.ShowNotes, &ex.WeightUnit,
			&setID, &reps, &weight,
		); err != nil {
			return fmt.Errorf("scan exercise: %w", err)
		}

		w := byID[workoutID]
		if n := len(w.Exercises); n == 0 || w.Exercises[n-1].ID != ex.ID {
			ex.Sets = []Set{}
			w.Exercises = append(w.Exercises, ex)
		}
		if setID != nil {
			last := &w.Exercises[len(w.Exercises)-1]
			last.Sets = append(last.Sets, Set{ID: *setID, Reps: *reps, Weight: *weight})
		}
	}
	return rows.Err()
}

func rows2workouts(rows pgx.Rows) ([]Workout, error) {
	defer rows.Close()

	var workouts []Workout
	for rows.Next() {
		var w Workout
		if err := rows.Scan(&w.ID, &w.Name, &w.Date, &w.SortOrder, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}
