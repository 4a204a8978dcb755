package ingest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/internal/eventbus"
	"github.com/Vamsirusheel01/sentinel-ai/internal/eventstore"
	"github.com/Vamsirusheel01/sentinel-ai/internal/trust"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
)

const defaultListLimit = 50

// Handler bundles the collaborators every route needs: the Event Store,
// the Trust Engine, the eventbus publisher, a clock (spec.md Design
// Notes — deadlines are driven by an injectable clock), and the OTel
// metrics every processed payload feeds.
type Handler struct {
	store   eventstore.Querier
	trust   *trust.Engine
	bus     eventbus.Publisher
	clk     clock.Clock
	logger  *zap.Logger
	metrics metrics
}

// New constructs a Handler.
func New(store eventstore.Querier, trustEngine *trust.Engine, bus eventbus.Publisher, clk clock.Clock, logger *zap.Logger) *Handler {
	return &Handler{store: store, trust: trustEngine, bus: bus, clk: clk, logger: logger, metrics: newMetrics()}
}

// RegisterRoutes mounts every endpoint spec.md §6 names onto e.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.POST("/api/logs", h.postLogs)
	e.GET("/api/logs", h.getLogs)
	e.GET("/api/status", h.getStatus)
	e.GET("/api/devices", h.getDevices)
	e.GET("/api/process-activity", h.getProcessActivity)
}

// postLogs implements spec.md §4.7: accept one payload object or an
// array, persist every event, invoke the Trust Engine, update trust, and
// return the resulting score + feedback.
func (h *Handler) postLogs(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errResp("failed to read request body"))
	}

	payloads, err := decodeBody(body)
	if err != nil {
		if errors.Is(err, errEmptyPayload) {
			return c.JSON(http.StatusBadRequest, errResp("empty payload"))
		}
		return c.JSON(http.StatusBadRequest, errResp("invalid payload: "+err.Error()))
	}

	ctx := c.Request().Context()
	now := h.clk.Now()

	var (
		lastScore    float64
		lastFeedback string
	)

	for _, p := range payloads {
		events := p.cleanEvents()
		payloadType := p.payloadType(events)

		isNew, err := h.store.UpsertDevice(ctx, p.Device, now)
		if err != nil {
			h.logger.Error("ingest: upsert device failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
		}
		if isNew {
			h.logger.Info("ingest: new device enrolled", zap.String("device_id", p.Device.DeviceID))
		}

		if err := h.store.InsertEvents(ctx, p.Device.DeviceID, p.ContextID, events, now); err != nil {
			h.logger.Error("ingest: insert events failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
		}
		h.metrics.recordPayload(ctx, p.Device.DeviceID, payloadType, len(events))

		result := h.trust.Evaluate(p.Device.DeviceID, events, now)

		score, err := h.store.UpdateTrustScore(ctx, p.Device.DeviceID, func(current float64) float64 {
			return trust.UpdateScore(current, result, h.trust.Params())
		})
		if err != nil {
			h.logger.Error("ingest: update trust score failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
		}

		feedback := trust.Feedback(result, score)
		h.metrics.recordTrustUpdate(ctx, result.ObservedSeverity.String(), score)

		if h.bus != nil {
			if err := h.bus.PublishDeviceRiskChanged(eventbus.DeviceRiskChanged{
				DeviceID:   p.Device.DeviceID,
				TrustScore: score,
				Feedback:   feedback,
				Severity:   result.ObservedSeverity.String(),
				OccurredAt: now,
			}); err != nil {
				h.logger.Warn("ingest: eventbus publish failed", zap.Error(err))
			}
		}

		h.logger.Info("ingest: payload processed",
			zap.String("device_id", p.Device.DeviceID),
			zap.String("payload_type", payloadType),
			zap.Float64("trust_score", score),
			zap.String("severity", result.ObservedSeverity.String()),
		)

		lastScore, lastFeedback = score, feedback
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"status":      "success",
		"trust_score": roundTo1dp(lastScore),
		"feedback":    lastFeedback,
	})
}

func (h *Handler) getStatus(c echo.Context) error {
	ctx := c.Request().Context()

	devices, err := h.store.ListDevices(ctx)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
	}
	events, err := h.store.ListRecentEvents(ctx, 30)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"devices":       devices,
		"recent_events": events,
	})
}

func (h *Handler) getDevices(c echo.Context) error {
	devices, err := h.store.ListDevices(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
	}
	return c.JSON(http.StatusOK, devices)
}

func (h *Handler) getLogs(c echo.Context) error {
	deviceID := c.QueryParam("device_id")
	limit := queryLimit(c, defaultListLimit)

	if deviceID != "" {
		records, err := h.store.ListEventsByDevice(c.Request().Context(), deviceID, limit)
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
		}
		return c.JSON(http.StatusOK, records)
	}

	records, err := h.store.ListRecentEvents(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) getProcessActivity(c echo.Context) error {
	deviceID := c.QueryParam("device_id")
	limit := queryLimit(c, defaultListLimit)

	records, err := h.store.ListProcessActivity(c.Request().Context(), deviceID, limit)
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errResp("storage unavailable"))
	}
	return c.JSON(http.StatusOK, records)
}

func queryLimit(c echo.Context, fallback int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func roundTo1dp(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func errResp(msg string) map[string]string {
	return map[string]string{"error": msg}
}
