package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/2beens/setpad/internal/workouts/ordering"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler turns MCP tool calls into service calls. Failures are reported as
// IsError tool results, so the client model can read them.
type Handler struct {
	service contextService
}

func NewHandler(service contextService) *Handler {
	return &Handler{
		service: service,
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error encoding response: " + err.Error())
	}
	return textResult(string(raw))
}

// GetSetpadSchemaTool returns the handler for get_setpad_schema.
func (h *Handler) GetSetpadSchemaTool() func(context.Context, *mcp.CallToolRequest, any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
		text, err := h.service.GetSchema(ctx)
		if err != nil {
			return errorResult("Error fetching schema: " + err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	}
}

// GetWorkoutSummaryTool returns the handler for get_workout_summary.
func (h *Handler) GetWorkoutSummaryTool() func(context.Context, *mcp.CallToolRequest, any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ any) (*mcp.CallToolResult, any, error) {
		summary, err := h.service.GetSummary(ctx)
		if err != nil {
			return errorResult("Error computing summary: " + err.Error()), nil, nil
		}
		return jsonResult(summary), nil, nil
	}
}

// DateRangeInput is the input for get_workouts_for_date_range.
type DateRangeInput struct {
	FromDate string `json:"from_date" jsonschema:"Start date (YYYY-MM-DD)"`
	ToDate   string `json:"to_date" jsonschema:"End date (YYYY-MM-DD), inclusive"`
}

// GetWorkoutsForDateRangeTool returns the handler for get_workouts_for_date_range.
func (h *Handler) GetWorkoutsForDateRangeTool() func(context.Context, *mcp.CallToolRequest, DateRangeInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in DateRangeInput) (*mcp.CallToolResult, any, error) {
		from, ok := ordering.ParseDate(in.FromDate)
		if !ok {
			return errorResult("Invalid from_date: use YYYY-MM-DD"), nil, nil
		}
		to, ok := ordering.ParseDate(in.ToDate)
		if !ok {
			return errorResult("Invalid to_date: use YYYY-MM-DD"), nil, nil
		}
		if to.Before(from) {
			return errorResult("Invalid range: to_date is before from_date"), nil, nil
		}

		list, err := h.service.ListWorkouts(ctx, in.FromDate, in.ToDate)
		if err != nil {
			return errorResult("Error listing workouts: " + err.Error()), nil, nil
		}
		if list == nil {
			return textResult("[]"), nil, nil
		}
		return jsonResult(list), nil, nil
	}
}

// ExerciseHistoryInput is the input for get_exercise_history.
type ExerciseHistoryInput struct {
	Exercise string `json:"exercise" jsonschema:"Exercise name (e.g. Squat), matched case insensitively"`
}

// GetExerciseHistoryTool returns the handler for get_exercise_history.
func (h *Handler) GetExerciseHistoryTool() func(context.Context, *mcp.CallToolRequest, ExerciseHistoryInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in ExerciseHistoryInput) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(in.Exercise) == "" {
			return errorResult("Missing exercise"), nil, nil
		}
		history, err := h.service.GetExerciseHistory(ctx, in.Exercise)
		if err != nil {
			return errorResult("Error fetching exercise history: " + err.Error()), nil, nil
		}
		return jsonResult(history), nil, nil
	}
}
