// Package mcptools exposes the forecasting engine as MCP tools so agent
// hosts can run forecasts over the Model Context Protocol.
package mcptools

// StartForecastInput is the input for the start_forecast MCP tool.
type StartForecastInput struct {
	GameID   string `json:"gameId" jsonschema:"identifier of the game to forecast"`
	HomeID   string `json:"homeId" jsonschema:"identifier of the home team"`
	AwayID   string `json:"awayId" jsonschema:"identifier of the away team"`
	Preset   string `json:"preset,omitempty" jsonschema:"pipeline preset name (default: default)"`
	Priority int    `json:"priority,omitempty" jsonschema:"queue priority; higher runs first"`
}

// StartForecastOutput is the output of the start_forecast MCP tool.
type StartForecastOutput struct {
	ForecastID string `json:"forecastId"`
	TaskID     string `json:"taskId"`
	Status     string `json:"status"`
}

// GetForecastInput is the input for the get_forecast MCP tool.
type GetForecastInput struct {
	ForecastID string `json:"forecastId" jsonschema:"forecast identifier returned by start_forecast"`
}

// GetForecastOutput is the output of the get_forecast MCP tool.
type GetForecastOutput struct {
	ForecastID       string          `json:"forecastId"`
	GameID           string          `json:"gameId"`
	CurrentStage     string          `json:"currentStage,omitempty"`
	BaseRate         *float64        `json:"baseRate,omitempty"`
	Posterior        *float64        `json:"posterior,omitempty"`
	FinalProbability *float64        `json:"finalProbability,omitempty"`
	FinalInterval    *IntervalOutput `json:"finalInterval,omitempty"`
	Recommendation   string          `json:"recommendation,omitempty"`
	KeyDrivers       []string        `json:"keyDrivers,omitempty"`
	Concerns         []string        `json:"concerns,omitempty"`
}

// IntervalOutput mirrors a probability interval in tool output.
type IntervalOutput struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// CancelForecastInput is the input for the cancel_forecast MCP tool.
type CancelForecastInput struct {
	ForecastID string `json:"forecastId" jsonschema:"forecast identifier to cancel"`
}

// CancelForecastOutput is the output of the cancel_forecast MCP tool.
type CancelForecastOutput struct {
	ForecastID string `json:"forecastId"`
	Status     string `json:"status"`
}

// ListForecastsInput is the input for the list_forecasts MCP tool.
type ListForecastsInput struct {
	GameID string `json:"gameId,omitempty" jsonschema:"filter tasks to one game (default: active tasks)"`
}

// ForecastSummary is one entry in the list_forecasts output.
type ForecastSummary struct {
	ForecastID   string `json:"forecastId"`
	TaskID       string `json:"taskId"`
	GameID       string `json:"gameId"`
	State        string `json:"state"`
	CurrentStage string `json:"currentStage,omitempty"`
}

// ListForecastsOutput is the output of the list_forecasts MCP tool.
type ListForecastsOutput struct {
	Forecasts []ForecastSummary `json:"forecasts"`
}
