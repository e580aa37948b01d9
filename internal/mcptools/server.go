package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/pipeline"
)

const version = "0.1.0"

// NewForecastMCPServer creates an MCP server with the 4 forecast tools
// registered: start_forecast, get_forecast, cancel_forecast and
// list_forecasts.
func NewForecastMCPServer(orch *pipeline.Orchestrator, store forecast.Store) *mcp.Server {
	svc := NewForecastService(orch, store)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "foresight",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_forecast",
		Description: "Submit a game for probabilistic forecasting. Returns forecast and task ids; progress is asynchronous.",
	}, svc.StartForecast)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_forecast",
		Description: "Get the current state of a forecast: stage, base rate, posterior and final probability when complete.",
	}, svc.GetForecast)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cancel_forecast",
		Description: "Cancel a queued or running forecast. Running forecasts stop at the next stage boundary.",
	}, svc.CancelForecast)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_forecasts",
		Description: "List forecast tasks, either all active or filtered to one game.",
	}, svc.ListForecasts)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin
// closes or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
