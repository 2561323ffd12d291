package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/2beens/setpad/internal/db"
	"github.com/2beens/setpad/internal/workouts"
)

type workoutsLister interface {
	List(ctx context.Context, params workouts.ListParams) ([]workouts.Workout, error)
}

type statsAnalyzer interface {
	Summary(ctx context.Context) (*workouts.Summary, error)
	ExerciseHistory(ctx context.Context, exercise string) (*workouts.ExerciseHistory, error)
}

// contextService is what the tool handlers need, kept narrow for tests.
type contextService interface {
	GetSchema(ctx context.Context) (string, error)
	GetSummary(ctx context.Context) (*workouts.Summary, error)
	ListWorkouts(ctx context.Context, from, to string) ([]workouts.Workout, error)
	GetExerciseHistory(ctx context.Context, exercise string) (*workouts.ExerciseHistory, error)
}

// ContextService answers coach questions from the stored workouts.
type ContextService struct {
	schema   SchemaRepo
	workouts workoutsLister
	analyzer statsAnalyzer
}

func NewContextService(schemaRepo SchemaRepo, lister workoutsLister, analyzer statsAnalyzer) *ContextService {
	return &ContextService{
		schema:   schemaRepo,
		workouts: lister,
		analyzer: analyzer,
	}
}

// GetSchema returns the setpad tables and their columns as markdown.
func (s *ContextService) GetSchema(ctx context.Context) (string, error) {
	cols, err := s.schema.GetSetpadColumns(ctx)
	if err != nil {
		return "", err
	}
	return formatSchema(cols), nil
}

func formatSchema(cols []SchemaColumn) string {
	if len(cols) == 0 {
		return "# Setpad DB Schema\n\nNo setpad tables found in the database.\n"
	}

	byTable := make(map[string][]SchemaColumn)
	for _, c := range cols {
		byTable[c.TableName] = append(byTable[c.TableName], c)
	}

	tableOrder := make([]string, 0, len(byTable))
	for t := range byTable {
		tableOrder = append(tableOrder, t)
	}
	sort.Strings(tableOrder)

	var b strings.Builder
	b.WriteString("# Setpad DB Schema\n\n")
	b.WriteString("Tables: ")
	b.WriteString(strings.Join(db.SchemaTables, ", "))
	b.WriteString(" (schema: public).\n")
	b.WriteString("Workouts are listed by date desc, then sort_order desc (nulls last).\n\n")

	for _, tableName := range tableOrder {
		b.WriteString("## ")
		b.WriteString(tableName)
		b.WriteString("\n\n| Column | Type | Nullable | Default |\n|--------|------|----------|--------|\n")
		for _, c := range byTable[tableName] {
			def := "-"
			if c.ColumnDef != nil && *c.ColumnDef != "" {
				def = *c.ColumnDef
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", c.ColumnName, c.DataType, c.IsNullable, def)
		}
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n\n") + "\n"
}

func (s *ContextService) GetSummary(ctx context.Context) (*workouts.Summary, error) {
	return s.analyzer.Summary(ctx)
}

// ListWorkouts returns the workouts between from and to (YYYY-MM-DD, inclusive), in display order.
func (s *ContextService) ListWorkouts(ctx context.Context, from, to string) ([]workouts.Workout, error) {
	return s.workouts.List(ctx, workouts.ListParams{From: from, To: to})
}

func (s *ContextService) GetExerciseHistory(ctx context.Context, exercise string) (*workouts.ExerciseHistory, error) {
	return s.analyzer.ExerciseHistory(ctx, exercise)
}
