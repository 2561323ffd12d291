package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2beens/setpad/internal/middleware"
	"github.com/2beens/setpad/internal/telemetry/metrics"
	"github.com/2beens/setpad/internal/telemetry/tracing"
	"github.com/2beens/setpad/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const maxImportBodyBytes = 10 << 20

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

type workoutsService interface {
	Create(ctx context.Context, workout Workout) (*Workout, error)
	Update(ctx context.Context, workout Workout) (*Workout, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Workout, error)
	List(ctx context.Context, params ListParams) ([]Workout, error)
	Import(ctx context.Context, workouts []Workout) (*ImportResult, error)
	Rebalance(ctx context.Context) (int, error)
}

type statsAnalyzer interface {
	Summary(ctx context.Context) (*Summary, error)
	ExerciseHistory(ctx context.Context, exercise string) (*ExerciseHistory, error)
}

type DeleteWorkoutResponse struct {
	DeletedID string `json:"deletedId"`
}

type RebalanceResponse struct {
	Renumbered int `json:"renumbered"`
}

type Handler struct {
	service  workoutsService
	analyzer statsAnalyzer
}

func NewHandler(service workoutsService, analyzer statsAnalyzer) *Handler {
	return &Handler{
		service:  service,
		analyzer: analyzer,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	importAllowedPerMin int,
) {
	importHandler := middleware.RateLimit(rateLimiter, "workouts-import", importAllowedPerMin, metricsManager)(
		http.HandlerFunc(handler.HandleImport),
	)

	mainRouter.Handle("/workouts/import", importHandler).Methods("POST", "OPTIONS").Name("import-workouts")
	mainRouter.HandleFunc("/workouts/ordering/rebalance", handler.HandleRebalance).Methods("POST", "OPTIONS").Name("rebalance-workouts")
	mainRouter.HandleFunc("/workouts/stats/summary", handler.HandleStatsSummary).Methods("GET", "OPTIONS").Name("stats-summary")
	mainRouter.HandleFunc("/workouts/stats/exercise/{name}/history", handler.HandleExerciseHistory).Methods("GET", "OPTIONS").Name("exercise-history")
	mainRouter.HandleFunc("/workouts", handler.HandleList).Methods("GET", "OPTIONS").Name("list-workouts")
	mainRouter.HandleFunc("/workouts", handler.HandleAdd).Methods("POST", "OPTIONS").Name("new-workout")
	mainRouter.HandleFunc("/workouts/{id}", handler.HandleGet).Methods("GET", "OPTIONS").Name("get-workout")
	mainRouter.HandleFunc("/workouts/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-workout")
	mainRouter.HandleFunc("/workouts/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-workout")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.new")
	defer span.End()

	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var workout Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		log.Errorf("new workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	added, err := handler.service.Create(ctx, workout)
	if err != nil {
		log.Errorf("failed to add new workout [%s] [%s]: %s", workout.ID, workout.Date, err)
		writeServiceError(w, err, "failed to add new workout")
		return
	}

	log.Debugf("new workout added: [%s] on %s", added.ID, added.Date)
	writeJSON(w, added, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.get")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	workout, err := handler.service.Get(ctx, id)
	if err != nil {
		log.Errorf("failed to get workout %s: %s", id, err)
		writeServiceError(w, err, "failed to get workout")
		return
	}

	writeJSON(w, workout, http.StatusOK)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	query := r.URL.Query()
	params := ListParams{
		Date: query.Get("date"),
		From: query.Get("from"),
		To:   query.Get("to"),
	}

	log.Tracef("list workouts - date [%s], from [%s] to [%s]", params.Date, params.From, params.To)

	workouts, err := handler.service.List(ctx, params)
	if err != nil {
		log.Errorf("list workouts error: %s", err)
		writeServiceError(w, err, "failed to get workouts")
		return
	}
	if workouts == nil {
		workouts = []Workout{}
	}

	writeJSON(w, workouts, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.update")
	defer span.End()

	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	var workout Workout
	if err := json.NewDecoder(r.Body).Decode(&workout); err != nil {
		log.Errorf("update workout, unmarshal json params: %s", err)
		http.Error(w, "update workout failed", http.StatusBadRequest)
		return
	}
	if workout.ID != "" && workout.ID != id {
		http.Error(w, "error, workout id does not match path", http.StatusBadRequest)
		return
	}
	workout.ID = id

	updated, err := handler.service.Update(ctx, workout)
	if err != nil {
		log.Errorf("failed to update workout [%s]: %s", id, err)
		writeServiceError(w, err, "failed to update workout")
		return
	}

	log.Debugf("workout updated: [%s] on %s", updated.ID, updated.Date)
	writeJSON(w, updated, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	if err := handler.service.Delete(ctx, id); err != nil {
		log.Errorf("failed to delete workout %s: %s", id, err)
		writeServiceError(w, err, "workout not deleted")
		return
	}

	writeJSON(w, DeleteWorkoutResponse{DeletedID: id}, http.StatusOK)
}

// HandleImport takes a JSON array of workouts.
func (handler *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.import")
	defer span.End()

	if r.Header.Get("Content-Type") != pkg.ContentType.JSON {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var workouts []Workout
	if err := json.NewDecoder(io.LimitReader(r.Body, maxImportBodyBytes)).Decode(&workouts); err != nil {
		log.Errorf("import workouts, unmarshal json: %s", err)
		http.Error(w, "import workouts failed, expected a json array of workouts", http.StatusBadRequest)
		return
	}
	if len(workouts) == 0 {
		http.Error(w, "error, nothing to import", http.StatusBadRequest)
		return
	}

	result, err := handler.service.Import(ctx, workouts)
	if err != nil {
		log.Errorf("import workouts: %s", err)
		writeServiceError(w, err, "import workouts failed")
		return
	}

	log.Infof(
		"workouts imported: %d created, %d skipped, %d failed",
		len(result.Created), len(result.Skipped), len(result.Failed),
	)
	writeJSON(w, result, http.StatusOK)
}

func (handler *Handler) HandleRebalance(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.rebalance")
	defer span.End()

	renumbered, err := handler.service.Rebalance(ctx)
	if err != nil {
		log.Errorf("rebalance workouts: %s", err)
		writeServiceError(w, err, "rebalance failed")
		return
	}

	writeJSON(w, RebalanceResponse{Renumbered: renumbered}, http.StatusOK)
}

func (handler *Handler) HandleStatsSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.stats-summary")
	defer span.End()

	summary, err := handler.analyzer.Summary(ctx)
	if err != nil {
		log.Errorf("get workouts summary: %s", err)
		http.Error(w, "failed to get workouts summary", http.StatusInternalServerError)
		return
	}

	writeJSON(w, summary, http.StatusOK)
}

func (handler *Handler) HandleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.exercise-history")
	defer span.End()

	name := mux.Vars(r)["name"]
	if name == "" {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return
	}

	history, err := handler.analyzer.ExerciseHistory(ctx, name)
	if err != nil {
		log.Errorf("get exercise history [%s]: %s", name, err)
		http.Error(w, "failed to get exercise history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, history, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	resp, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to marshal response: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, status)
}

func writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ErrWorkoutNotFound):
		http.Error(w, "workout not found", http.StatusNotFound)
	case errors.Is(err, ErrWorkoutExists):
		http.Error(w, "workout already exists", http.StatusConflict)
	case errors.Is(err, ErrInvalidWorkout):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrOrderingBusy):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
