package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/pipeline"
)

// ForecastService handles MCP tool calls. It wraps the orchestrator for
// submission and cancellation and reads results from the store.
type ForecastService struct {
	orch  *pipeline.Orchestrator
	store forecast.Store
}

// NewForecastService creates a ForecastService over the given orchestrator
// and store.
func NewForecastService(orch *pipeline.Orchestrator, store forecast.Store) *ForecastService {
	return &ForecastService{orch: orch, store: store}
}

// StartForecast submits a new forecast and returns its identifiers.
func (s *ForecastService) StartForecast(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StartForecastInput,
) (*mcp.CallToolResult, StartForecastOutput, error) {
	if input.GameID == "" || input.HomeID == "" || input.AwayID == "" {
		return nil, StartForecastOutput{Status: "failed"},
			fmt.Errorf("gameId, homeId and awayId are required")
	}

	forecastID, taskID, err := s.orch.Start(ctx, input.GameID, input.HomeID, input.AwayID, input.Preset, input.Priority)
	if err != nil {
		return nil, StartForecastOutput{Status: "failed"}, err
	}

	return nil, StartForecastOutput{
		ForecastID: forecastID,
		TaskID:     taskID,
		Status:     string(forecast.TaskQueued),
	}, nil
}

// GetForecast reports the current state of one forecast.
func (s *ForecastService) GetForecast(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetForecastInput,
) (*mcp.CallToolResult, GetForecastOutput, error) {
	fc, err := s.store.GetContext(input.ForecastID)
	if err != nil {
		return nil, GetForecastOutput{}, err
	}

	out := GetForecastOutput{
		ForecastID:       fc.ID,
		GameID:           fc.GameID,
		CurrentStage:     string(fc.CurrentStage),
		BaseRate:         fc.BaseRate,
		Posterior:        fc.Posterior,
		FinalProbability: fc.FinalProbability,
		Recommendation:   fc.Recommendation,
		KeyDrivers:       fc.KeyDrivers,
		Concerns:         fc.Concerns,
	}
	if fc.FinalInterval != nil {
		out.FinalInterval = &IntervalOutput{Low: fc.FinalInterval.Low, High: fc.FinalInterval.High}
	}
	return nil, out, nil
}

// CancelForecast requests cancellation of a running or queued forecast.
func (s *ForecastService) CancelForecast(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input CancelForecastInput,
) (*mcp.CallToolResult, CancelForecastOutput, error) {
	if err := s.orch.Cancel(input.ForecastID); err != nil {
		return nil, CancelForecastOutput{ForecastID: input.ForecastID, Status: "failed"}, err
	}
	return nil, CancelForecastOutput{
		ForecastID: input.ForecastID,
		Status:     "cancelling",
	}, nil
}

// ListForecasts lists tasks, either for one game or all active.
func (s *ForecastService) ListForecasts(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input ListForecastsInput,
) (*mcp.CallToolResult, ListForecastsOutput, error) {
	var tasks []*forecast.Task
	var err error
	if input.GameID != "" {
		tasks, err = s.store.TasksByGame(input.GameID)
	} else {
		tasks, err = s.store.ActiveTasks()
	}
	if err != nil {
		return nil, ListForecastsOutput{}, err
	}

	out := ListForecastsOutput{Forecasts: []ForecastSummary{}}
	for _, t := range tasks {
		out.Forecasts = append(out.Forecasts, ForecastSummary{
			ForecastID:   t.ForecastID,
			TaskID:       t.ID,
			GameID:       t.GameID,
			State:        string(t.State),
			CurrentStage: string(t.CurrentStage),
		})
	}
	return nil, out, nil
}
