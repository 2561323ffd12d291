package workouts

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/setpad/internal/telemetry/metrics"
	"github.com/2beens/setpad/internal/telemetry/tracing"
	"github.com/2beens/setpad/internal/workouts/ordering"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	statsCacheTTLSeconds = 60 * 60
	topListSize          = 5
	summaryCacheKey      = "stats:summary"
)

//go:generate mockgen -source=$GOFILE -destination=analyzer_mocks_test.go -package=workouts_test

type workoutsLister interface {
	List(ctx context.Context, params ListParams) ([]Workout, error)
}

// Summary holds the aggregate numbers the coach reads.
type Summary struct {
	TotalWorkouts    int          `json:"totalWorkouts"`
	WorkoutsThisYear int          `json:"workoutsThisYear"`
	TotalSets        int          `json:"totalSets"`
	TopExercises     []NameCount  `json:"topExercises"`
	TopMuscleGroups  []NameCount  `json:"topMuscleGroups"`
	LastWorkout      *LastWorkout `json:"lastWorkout,omitempty"`
}

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LastWorkout struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Exercises int    `json:"exercises"`
}

// ExerciseHistory is the per-day progression of a single exercise.
type ExerciseHistory struct {
	Exercise string             `json:"exercise"`
	Days     []ExerciseDayStats `json:"days"`
}

type ExerciseDayStats struct {
	Date       string   `json:"date"`
	Sets       int      `json:"sets"`
	MaxWeight  *float64 `json:"maxWeight,omitempty"`
	AvgReps    *float64 `json:"avgReps,omitempty"`
	WeightUnit string   `json:"weightUnit"`
}

type Analyzer struct {
	repo           workoutsLister
	cache          *freecache.Cache
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewAnalyzer(repo workoutsLister, cacheSizeMB int, metricsManager *metrics.Manager) *Analyzer {
	return NewAnalyzerWithClock(repo, cacheSizeMB, metricsManager, time.Now)
}

func NewAnalyzerWithClock(
	repo workoutsLister,
	cacheSizeMB int,
	metricsManager *metrics.Manager,
	now func() time.Time,
) *Analyzer {
	if cacheSizeMB <= 0 {
		cacheSizeMB = 1
	}
	return &Analyzer{
		repo:           repo,
		cache:          freecache.NewCache(cacheSizeMB * 1024 * 1024),
		metricsManager: metricsManager,
		now:            now,
	}
}

// Invalidate drops all cached stats. Called after every workout write.
func (a *Analyzer) Invalidate() {
	a.cache.Clear()
}

func (a *Analyzer) Summary(ctx context.Context) (_ *Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var summary Summary
	if a.fromCache(summaryCacheKey, &summary) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &summary, nil
	}

	workouts, err := a.repo.List(ctx, ListParams{})
	if err != nil {
		return nil, err
	}

	summary = summarize(workouts, a.now())
	a.toCache(summaryCacheKey, summary)
	return &summary, nil
}

func (a *Analyzer) ExerciseHistory(ctx context.Context, exercise string) (_ *ExerciseHistory, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analyzer.workouts.exercise-history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("exercise", exercise))

	key := "stats:history:" + normalizeName(exercise)
	var history ExerciseHistory
	if a.fromCache(key, &history) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &history, nil
	}

	workouts, err := a.repo.List(ctx, ListParams{})
	if err != nil {
		return nil, err
	}

	history = exerciseHistory(workouts, exercise)
	a.toCache(key, history)
	return &history, nil
}

func (a *Analyzer) fromCache(key string, v any) bool {
	raw, err := a.cache.Get([]byte(key))
	if err != nil {
		a.countLookup("miss")
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Errorf("unmarshal cached %s: %s", key, err)
		a.countLookup("miss")
		return false
	}
	a.countLookup("hit")
	return true
}

func (a *Analyzer) toCache(key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal %s for cache: %s", key, err)
		return
	}
	if err := a.cache.Set([]byte(key), raw, statsCacheTTLSeconds); err != nil {
		log.Warnf("cache %s: %s", key, err)
	}
}

func (a *Analyzer) countLookup(result string) {
	if a.metricsManager != nil {
		a.metricsManager.CounterStatsCacheLookups.WithLabelValues(result).Inc()
	}
}

// summarize expects workouts in display order, newest first.
func summarize(workouts []Workout, now time.Time) Summary {
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	summary := Summary{
		TotalWorkouts:   len(workouts),
		TopExercises:    []NameCount{},
		TopMuscleGroups: []NameCount{},
	}
	exercises := newCounter()
	muscleGroups := newCounter()

	var last *Workout
	for i := range workouts {
		w := &workouts[i]
		summary.TotalSets += w.SetsCount()

		if date, ok := ordering.ParseDate(w.Date); ok {
			if !date.Before(yearStart) {
				summary.WorkoutsThisYear++
			}
			if last == nil {
				last = w
			}
		}

		for _, ex := range w.Exercises {
			exercises.add(ex.Name)
			muscleGroups.add(ex.MuscleGroup)
		}
	}

	if last == nil && len(workouts) > 0 {
		last = &workouts[0]
	}
	if last != nil {
		summary.LastWorkout = &LastWorkout{
			ID:        last.ID,
			Name:      last.Name,
			Date:      last.Date,
			Exercises: len(last.Exercises),
		}
	}

	summary.TopExercises = exercises.top(topListSize)
	summary.TopMuscleGroups = muscleGroups.top(topListSize)
	return summary
}

func exerciseHistory(workouts []Workout, exercise string) ExerciseHistory {
	wanted := normalizeName(exercise)
	history := ExerciseHistory{
		Exercise: strings.TrimSpace(exercise),
		Days:     []ExerciseDayStats{},
	}

	type dayAcc struct {
		stats     ExerciseDayStats
		repsSum   float64
		repsCount int
	}
	days := map[string]*dayAcc{}

	for _, w := range workouts {
		if _, ok := ordering.ParseDate(w.Date); !ok {
			continue
		}
		for _, ex := range w.Exercises {
			if normalizeName(ex.Name) != wanted {
				continue
			}

			acc, ok := days[w.Date]
			if !ok {
				acc = &dayAcc{stats: ExerciseDayStats{Date: w.Date, WeightUnit: ex.WeightUnit}}
				days[w.Date] = acc
			}

			for _, s := range ex.Sets {
				acc.stats.Sets++
				if weight, ok := parseNumber(s.Weight); ok {
					if acc.stats.MaxWeight == nil || weight > *acc.stats.MaxWeight {
						acc.stats.MaxWeight = &weight
					}
				}
				if reps, ok := parseNumber(s.Reps); ok {
					acc.repsSum += reps
					acc.repsCount++
				}
			}
		}
	}

	for _, acc := range days {
		if acc.repsCount > 0 {
			avg := acc.repsSum / float64(acc.repsCount)
			acc.stats.AvgReps = &avg
		}
		history.Days = append(history.Days, acc.stats)
	}
	sort.Slice(history.Days, func(i, j int) bool {
		return history.Days[i].Date < history.Days[j].Date
	})

	return history
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// counter counts names case-insensitively, reporting the first spelling seen.
type counter struct {
	counts   map[string]int
	spelling map[string]string
}

func newCounter() *counter {
	return &counter{
		counts:   map[string]int{},
		spelling: map[string]string{},
	}
}

func (c *counter) add(name string) {
	key := normalizeName(name)
	if key == "" {
		return
	}
	if _, ok := c.spelling[key]; !ok {
		c.spelling[key] = strings.TrimSpace(name)
	}
	c.counts[key]++
}

func (c *counter) top(n int) []NameCount {
	keys := make([]string, 0, len(c.counts))
	for k := range c.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c.counts[keys[i]] != c.counts[keys[j]] {
			return c.counts[keys[i]] > c.counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}

	res := make([]NameCount, 0, len(keys))
	for _, k := range keys {
		res = append(res, NameCount{Name: c.spelling[k], Count: c.counts[k]})
	}
	return res
}
