package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Vamsirusheel01/sentinel-ai/internal/eventbus"
	"github.com/Vamsirusheel01/sentinel-ai/internal/eventstore"
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust"
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust/rules"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
)

func newTestHandler(t *testing.T) (*Handler, *eventstore.Memory) {
	t.Helper()
	store := eventstore.NewMemory()
	engine := trust.New(rules.Disabled(), trust.DefaultParams(), nil)
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	return New(store, engine, eventbus.Noop{}, clk, zaptest.NewLogger(t)), store
}

func doPost(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.postLogs(c))
	return rec
}

func TestPostLogsEmptyPayloadReturns400(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doPost(t, h, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostLogsInvalidJSONReturns400(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doPost(t, h, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostLogsSuccessReturns201WithScore(t *testing.T) {
	h, store := newTestHandler(t)
	body := `{
		"device": {"device_id": "dev-1", "hostname": "box"},
		"context_id": "ctx-1",
		"events": [
			{"event_type": "process_start", "timestamp": 1700000000, "pid": 42, "process_name": "bash"}
		]
	}`
	rec := doPost(t, h, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"success"`)
	assert.Contains(t, rec.Body.String(), `"trust_score"`)

	score, err := store.GetTrustScore(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, score, 1e-9, "benign payload on a fresh device clamps at 100")
}

func TestPostLogsArrayPayload(t *testing.T) {
	h, _ := newTestHandler(t)
	body := `[
		{"device": {"device_id": "dev-2"}, "events": []},
		{"device": {"device_id": "dev-2"}, "events": []}
	]`
	rec := doPost(t, h, body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
