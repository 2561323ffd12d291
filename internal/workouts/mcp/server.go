package mcp

import (
	"github.com/2beens/setpad/internal/workouts"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ServerName    = "setpad-coach"
	ServerVersion = "1.0.0"
)

// NewServer builds the coach MCP server: workout summary, workouts in a date
// range, per exercise history and the DB schema. Mounted at /mcp by the main
// service, and served over stdio by cmd/setpad_mcp.
func NewServer(pool *pgxpool.Pool, repo *workouts.Repo, analyzer *workouts.Analyzer) *mcp.Server {
	svc := NewContextService(NewPoolSchemaRepo(pool), repo, analyzer)
	return newServer(NewHandler(svc))
}

func newServer(h *Handler) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_workout_summary",
		Description: "Returns training totals: workouts logged (all time and this year), total sets, top exercises, top muscle groups and the most recent workout. Use for a quick overview before giving advice.",
	}, h.GetWorkoutSummaryTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_workouts_for_date_range",
		Description: "Returns the workouts (with exercises and sets) logged between from_date and to_date (YYYY-MM-DD, inclusive), most recent first. Use when you need to see what was trained in a period.",
	}, h.GetWorkoutsForDateRangeTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_exercise_history",
		Description: "Returns per day stats (sets, max weight, avg reps) for one exercise, oldest first. Arg: exercise (e.g. Squat). Use when asked about progression.",
	}, h.GetExerciseHistoryTool())

	mcp.AddTool(s, &mcp.Tool{
		Name:        "get_setpad_schema",
		Description: "Returns the DB schema of the setpad tables (workout, workout_exercise, workout_set): columns, types, nullable, default.",
	}, h.GetSetpadSchemaTool())

	return s
}
