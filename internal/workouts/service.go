package workouts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2beens/setpad/internal/telemetry/metrics"
	"github.com/2beens/setpad/internal/telemetry/tracing"
	"github.com/2beens/setpad/internal/workouts/ordering"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Add(ctx context.Context, workout Workout, ix ordering.Index) (*Workout, *ordering.Placement, error)
	Update(ctx context.Context, workout Workout, ix ordering.Index) (*Workout, *ordering.Placement, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Workout, error)
	List(ctx context.Context, params ListParams) ([]Workout, error)
	BackfillSortOrders(ctx context.Context, ix ordering.Index) (int, error)
	RenumberSortOrders(ctx context.Context, ix ordering.Index) (int, error)
}

type Service struct {
	repo           workoutsRepo
	index          ordering.Index
	metricsManager *metrics.Manager
	newID          func() string

	mu        sync.RWMutex
	onChanged []func()
}

func NewService(repo workoutsRepo, index ordering.Index, metricsManager *metrics.Manager) *Service {
	return &Service{
		repo:           repo,
		index:          index,
		metricsManager: metricsManager,
		newID:          uuid.NewString,
	}
}

// OnChanged registers fn to be called after every successful write.
func (s *Service) OnChanged(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChanged = append(s.onChanged, fn)
}

func (s *Service) changed() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.onChanged {
		fn()
	}
}

func (s *Service) Create(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := workout.Validate(); err != nil {
		return nil, err
	}
	if workout.ID == "" {
		workout.ID = s.newID()
	}
	span.SetAttributes(attribute.String("workout.id", workout.ID))

	added, placement, err := s.repo.Add(ctx, workout, s.index)
	if err != nil {
		return nil, fmt.Errorf("add workout %s: %w", workout.ID, err)
	}

	s.metricsManager.CounterWorkoutsCreated.Inc()
	s.observePlacement(added, placement)
	s.changed()

	return added, nil
}

func (s *Service) Update(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if workout.ID == "" {
		return nil, fmt.Errorf("%w: id empty", ErrInvalidWorkout)
	}
	if err := workout.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("workout.id", workout.ID))

	updated, placement, err := s.repo.Update(ctx, workout, s.index)
	if err != nil {
		return nil, fmt.Errorf("update workout %s: %w", workout.ID, err)
	}

	if placement != nil {
		s.observePlacement(updated, placement)
	}
	s.changed()

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete workout %s: %w", id, err)
	}
	s.changed()
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Workout, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, params ListParams) ([]Workout, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, params)
}

// Import creates the given workouts one by one. Workouts whose id is already
// stored are skipped, invalid ones are reported and do not stop the import.
func (s *Service) Import(ctx context.Context, workouts []Workout) (_ *ImportResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.import")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))

	result := &ImportResult{
		Created: []string{},
		Skipped: []string{},
		Failed:  []ImportError{},
	}
	for i, w := range workouts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		created, err := s.Create(ctx, w)
		switch {
		case err == nil:
			result.Created = append(result.Created, created.ID)
			s.metricsManager.CounterWorkoutsImported.WithLabelValues("created").Inc()
		case errors.Is(err, ErrWorkoutExists):
			result.Skipped = append(result.Skipped, w.ID)
			s.metricsManager.CounterWorkoutsImported.WithLabelValues("skipped").Inc()
		default:
			log.Warnf("import workout %d [%s]: %s", i, w.ID, err)
			result.Failed = append(result.Failed, ImportError{Index: i, ID: w.ID, Error: err.Error()})
			s.metricsManager.CounterWorkoutsImported.WithLabelValues("failed").Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("workouts.created", len(result.Created)),
		attribute.Int("workouts.skipped", len(result.Skipped)),
		attribute.Int("workouts.failed", len(result.Failed)),
	)
	return result, nil
}

// MigrateSortOrders gives a sort order to every workout stored without one.
// Meant to run once at startup, before serving requests.
func (s *Service) MigrateSortOrders(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.migrate-sort-orders")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	updated, err := s.repo.BackfillSortOrders(ctx, s.index)
	if err != nil {
		return 0, fmt.Errorf("backfill sort orders: %w", err)
	}

	s.metricsManager.CounterSortOrdersBackfilled.Add(float64(updated))
	if updated > 0 {
		log.Infof("sort orders assigned to %d workouts", updated)
		s.changed()
	} else {
		log.Debugln("no workouts without sort order")
	}
	return updated, nil
}

// Rebalance renumbers the sort orders of all workouts with uniform gaps.
func (s *Service) Rebalance(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.rebalance")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	updated, err := s.repo.RenumberSortOrders(ctx, s.index)
	if err != nil {
		return 0, fmt.Errorf("renumber sort orders: %w", err)
	}

	s.metricsManager.CounterSortOrderRebalances.Inc()
	s.metricsManager.HistogramRebalanceSize.Observe(float64(updated))
	log.Infof("sort orders renumbered for %d workouts", updated)
	s.changed()
	return updated, nil
}

func (s *Service) observePlacement(workout *Workout, placement *ordering.Placement) {
	if placement == nil {
		return
	}
	if placement.MalformedDate {
		s.metricsManager.CounterSortOrderFallbacks.Inc()
		log.Warnf("workout %s has unparseable date [%s], placed at the end of the list", workout.ID, workout.Date)
	}
	if placement.GapExhausted {
		s.metricsManager.CounterSortOrderGapExhausted.Inc()
		log.Warnf("no free sort order for workout %s on %s", workout.ID, workout.Date)
	}
	if len(placement.Renumber) > 0 {
		s.metricsManager.CounterSortOrderRebalances.Inc()
		s.metricsManager.HistogramRebalanceSize.Observe(float64(len(placement.Renumber)))
		log.Infof("sort orders renumbered for %d workouts after adding %s", len(placement.Renumber), workout.ID)
	}
}
