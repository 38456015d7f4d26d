package api

import (
	"context"
	"strings"
	"time"

	"optionpulse/internal/domain/models"
	domrepo "optionpulse/internal/domain/repository"
	"optionpulse/internal/service/ratelimit"
	"optionpulse/internal/usecase"
	pkgcache "optionpulse/pkg/cache"
	xhttp "optionpulse/pkg/http"
	xlogger "optionpulse/pkg/logger"
	"optionpulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// PredictHandler implements the prediction HTTP API.
type PredictHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
	buffer   domrepo.SnapshotBuffer
	stats    *usecase.StatsUseCase
	history  *usecase.HistoryUseCase
	store    domrepo.FeatureSink
	hub      *LiveHub
	cache    pkgcache.Service
	cacheTTL time.Duration
	rl       *ratelimit.Limiter
}

func NewPredictHandler(
	logger *xlogger.Logger,
	pipeline *usecase.Pipeline,
	buffer domrepo.SnapshotBuffer,
	stats *usecase.StatsUseCase,
	history *usecase.HistoryUseCase,
	store domrepo.FeatureSink,
	hub *LiveHub,
) *PredictHandler {
	return &PredictHandler{
		logger:   logger,
		pipeline: pipeline,
		buffer:   buffer,
		stats:    stats,
		history:  history,
		store:    store,
		hub:      hub,
		rl:       ratelimit.New(),
	}
}

// SetCache enables the short-TTL response cache for live predictions.
func (h *PredictHandler) SetCache(c pkgcache.Service, ttl time.Duration) {
	h.cache = c
	h.cacheTTL = ttl
}

func (h *PredictHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/features", h.Features)
	e.GET("/predict/:symbol", h.PredictLive)
	e.POST("/predict", h.Predict)
	e.GET("/recent", h.Recent)
	e.GET("/stats", h.Stats)
	e.GET("/history", h.History)
	if h.hub != nil {
		e.GET("/ws/live", h.hub.ServeWS)
	}
}

func (h *PredictHandler) Health(c echo.Context) error {
	payload := map[string]interface{}{
		"status":       "ok",
		"model_loaded": h.pipeline.ModelLoaded(),
		"buffer": map[string]int{
			"len": h.buffer.Len(),
			"cap": h.buffer.Cap(),
		},
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			payload["store"] = "unavailable"
		} else {
			payload["store"] = "ok"
		}
	}
	return xhttp.SuccessResponse(c, payload)
}

func (h *PredictHandler) Features(c echo.Context) error {
	manifest := h.pipeline.Manifest()
	if len(manifest) == 0 {
		return h.errorResponse(c, models.ModelNotLoaded("model bundle is not loaded", nil))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"features": manifest,
		"count":    len(manifest),
	})
}

func (h *PredictHandler) PredictLive(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	if symbol == "" {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{xhttp.BadRequestError("symbol required")})
	}
	if !h.rl.Allow(c.RealIP()+":predict", 5, 2) {
		return echo.NewHTTPError(429, "rate limited")
	}

	cacheKey := "predict:" + symbol
	if h.cache != nil {
		var cached models.PredictionResult
		if err := h.cache.Get(c.Request().Context(), cacheKey, &cached); err == nil {
			h.logger.Debug("predict cache_hit", xlogger.String("key", cacheKey))
			return xhttp.SuccessResponse(c, &cached)
		}
	}

	r, err := h.pipeline.FetchAndPredict(c.Request().Context(), symbol)
	if err != nil {
		return h.errorResponse(c, err)
	}

	if h.cache != nil {
		if err := h.cache.Set(c.Request().Context(), cacheKey, r, h.cacheTTL); err != nil {
			h.logger.Warn("predict cache_set_error", xlogger.Error(err))
		}
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *PredictHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var (
		r   *models.PredictionResult
		err error
	)
	if len(req.Features) > 0 {
		r, err = h.pipeline.PredictFeatures(req.Symbol, req.Features)
	} else {
		r, err = h.pipeline.FetchAndPredict(c.Request().Context(), req.Symbol)
	}
	if err != nil {
		return h.errorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *PredictHandler) Recent(c echo.Context) error {
	req := &models.RecentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.buffer.LastN(req.N)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PredictHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.stats.Stats())
}

func (h *PredictHandler) History(c echo.Context) error {
	if h.history == nil || !h.history.Available() {
		return xhttp.AppErrorResponse(c,
			xhttp.NotFoundError("history not available for configured store backend"))
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from, okFrom := util.ParseTime(req.From)
	if req.From != "" && !okFrom {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{xhttp.BadRequestError("from must be RFC3339 or unix seconds")})
	}
	to := util.ParseTimeDefault(req.To, time.Time{})

	rows, err := h.history.GetHistory(c.Request().Context(), usecase.GetHistoryParams{
		Symbol: strings.ToUpper(req.Symbol),
		From:   from,
		To:     to,
		N:      req.N,
	})
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError(err.Error()))
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for _, rec := range rows {
		out = append(out, map[string]interface{}{
			"symbol":    rec.Meta.Symbol,
			"timestamp": rec.Meta.Timestamp,
			"spot":      rec.Meta.Spot,
			"features":  rec.Features.Map(),
		})
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// errorResponse maps tagged pipeline errors onto HTTP statuses: upstream
// unavailability is 503, a broken upstream payload is 502, deployment
// defects are 500.
func (h *PredictHandler) errorResponse(c echo.Context, err error) error {
	kind := models.KindOf(err)
	switch kind {
	case models.KindDataUnavailable:
		h.logger.Warn("prediction unavailable",
			xlogger.String("reason", models.ReasonOf(err)), xlogger.Error(err))
		appErr := xhttp.ServiceUnavailableError("ERR_DATA_UNAVAILABLE", err.Error()).
			WithParam("reason", models.ReasonOf(err))
		return xhttp.AppErrorResponse(c, appErr)
	case models.KindMalformedSnapshot:
		h.logger.Error("malformed upstream snapshot", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("ERR_MALFORMED_SNAPSHOT", err.Error()))
	case models.KindFeatureContract:
		h.logger.Error("feature contract violation", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_FEATURE_CONTRACT", "", err.Error(), 500))
	case models.KindModelNotLoaded:
		h.logger.Error("model not loaded", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_MODEL_NOT_LOADED", err.Error()))
	default:
		h.logger.Error("prediction error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError(err.Error()))
	}
}
