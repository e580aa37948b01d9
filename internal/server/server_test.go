package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/foresight/internal/agent"
	"github.com/dusk-indust/foresight/internal/forecast"
	"github.com/dusk-indust/foresight/internal/invoke"
	"github.com/dusk-indust/foresight/internal/pipeline"
	"github.com/dusk-indust/foresight/internal/prompt"
	"github.com/dusk-indust/foresight/internal/reason"
)

// stubClient answers every reasoning call with the same JSON object, which
// carries the fields of every stage at once.
type stubClient struct{}

const stubOutput = `{
  "probability": 0.6,
  "matches": [{"description": "2023 rivalry game", "outcome": "home win"}],
  "items": [{"claim": "starter out", "source": "https://example.com"}],
  "updates": [{"evidence": "injury", "likelihoodRatio": 0.8}],
  "posterior": 0.55,
  "subQuestions": [{"question": "is the center available", "estimate": 0.7}],
  "concerns": ["thin sample"],
  "finalProbability": 0.62,
  "recommendation": "lean home side",
  "confidence": 0.8
}`

func (stubClient) Complete(context.Context, string, string, reason.Options) (*reason.Completion, error) {
	return &reason.Completion{Text: stubOutput}, nil
}

func (stubClient) CompleteJSON(context.Context, string, string, reason.Options) (*reason.Completion, error) {
	return &reason.Completion{Text: stubOutput}, nil
}

func (stubClient) CompleteWithSearch(context.Context, string, reason.Options) (*reason.SearchResult, error) {
	return &reason.SearchResult{Text: stubOutput, Sources: []string{"https://example.com"}}, nil
}

func newTestServer(t *testing.T) (*Server, *pipeline.Orchestrator, forecast.Store) {
	t.Helper()

	store := forecast.NewMemoryStore()
	registry, err := agent.DefaultRegistry(nil)
	require.NoError(t, err)
	renderer, err := prompt.NewRenderer()
	require.NoError(t, err)

	invoker := invoke.NewInvoker(registry, renderer, stubClient{}, nil)
	executor := pipeline.NewExecutor(store, invoker, pipeline.NewRouter(registry), nil)
	orch := pipeline.NewOrchestrator(store, executor, pipeline.NewReporter(), nil, nil)

	return New(store, orch, nil), orch, store
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndFetchForecast(t *testing.T) {
	srv, orch, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/forecasts",
		`{"gameId":"game-1","homeId":"lakers","awayId":"celtics"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted struct {
		ForecastID string `json:"forecastId"`
		TaskID     string `json:"taskId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.ForecastID)

	orch.Wait()

	rec = doJSON(t, mux, http.MethodGet, "/forecasts/"+submitted.ForecastID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var fc forecast.Context
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	require.NotNil(t, fc.FinalProbability)
	assert.InDelta(t, 0.62, *fc.FinalProbability, 1e-9)
}

func TestSubmitValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/forecasts", `{"gameId":"game-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/forecasts", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetForecastNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/forecasts/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportEndpoint(t *testing.T) {
	srv, orch, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/forecasts",
		`{"gameId":"game-1","homeId":"lakers","awayId":"celtics"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted struct {
		ForecastID string `json:"forecastId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	orch.Wait()

	rec = doJSON(t, mux, http.MethodGet, "/forecasts/"+submitted.ForecastID+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"finalProbability"`)

	rec = doJSON(t, mux, http.MethodGet, "/forecasts/"+submitted.ForecastID+"/report?format=markdown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Forecast game-1")
}

func TestListForecastsByGame(t *testing.T) {
	srv, orch, _ := newTestServer(t)
	mux := srv.routes()

	rec := doJSON(t, mux, http.MethodPost, "/forecasts",
		`{"gameId":"game-1","homeId":"lakers","awayId":"celtics"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	orch.Wait()

	rec = doJSON(t, mux, http.MethodGet, "/forecasts?gameId=game-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []forecast.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "game-1", tasks[0].GameID)
}

func TestCancelUnknownForecast(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodPost, "/forecasts/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHubBroadcastAndUnsubscribe(t *testing.T) {
	h := newHub()
	ch := h.subscribe()

	h.broadcast(pipeline.Event{Kind: pipeline.EventStageStart, ForecastID: "f1"})
	select {
	case e := <-ch:
		assert.Equal(t, "f1", e.ForecastID)
	default:
		t.Fatal("no event delivered")
	}

	h.unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}

func TestWriteStoreError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeStoreError(rec, forecast.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	writeStoreError(rec, errors.New("disk on fire"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
