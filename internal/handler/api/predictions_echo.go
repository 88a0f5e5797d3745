package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"FxPredict/internal/domain/models"
	domrepo "FxPredict/internal/domain/repository"
	"FxPredict/internal/service/metrics"
	"FxPredict/internal/service/ratelimit"
	xhttp "FxPredict/pkg/http"
	xlogger "FxPredict/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Predictor is the prediction surface the HTTP layer consumes.
type Predictor interface {
	BaseCurrency() string
	SupportedCurrencies() []string
	Predict(ctx context.Context, currency string) (models.PredictionResult, error)
	PredictAll(ctx context.Context) ([]models.PredictionResult, error)
	PredictAllPartial(ctx context.Context) models.PartialPredictions
	Historical(ctx context.Context, currency string) (models.HistoricalSeries, error)
	Future(ctx context.Context, currency string) ([]models.RatePoint, error)
	ChangePercentage(ctx context.Context, currency string) (float64, error)
}

// PredictionsEchoHandler serves the prediction REST API.
type PredictionsEchoHandler struct {
	logger    *xlogger.Logger
	predictor Predictor
	store     domrepo.SnapshotStore
	limiter   *ratelimit.Limiter
	metrics   *metrics.EndpointMetrics
}

// NewPredictionsEchoHandler wires the handler; store, limiter and metrics may be nil.
func NewPredictionsEchoHandler(
	logger *xlogger.Logger,
	predictor Predictor,
	store domrepo.SnapshotStore,
	limiter *ratelimit.Limiter,
	m *metrics.EndpointMetrics,
) *PredictionsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PredictionsEchoHandler{logger: logger, predictor: predictor, store: store, limiter: limiter, metrics: m}
}

func (h *PredictionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	if h.limiter != nil {
		g.Use(h.limiter.Middleware())
	}
	g.GET("/predictions", h.All)
	g.GET("/predictions/supported", h.Supported)
	g.GET("/predictions/:currency", h.One)
	g.GET("/predictions/:currency/historical", h.Historical)
	g.GET("/predictions/:currency/future", h.Future)
	g.GET("/predictions/:currency/change", h.Change)
	g.GET("/predictions/:currency/snapshots", h.Snapshots)
}

func (h *PredictionsEchoHandler) Health(c echo.Context) error {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Health(ctx); err != nil {
			h.logger.Warn("health: snapshot store unavailable", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("snapshot store unavailable"))
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *PredictionsEchoHandler) All(c echo.Context) error {
	start := time.Now()
	req := &models.AllPredictionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if req.Mode == "partial" {
		out := h.predictor.PredictAllPartial(c.Request().Context())
		dto := PartialDTO{Predictions: toPredictionDTOs(out.Results)}
		if len(out.Errors) > 0 {
			dto.Errors = make(map[string]ErrorDTO, len(out.Errors))
			for code, err := range out.Errors {
				appErr := mapError(err)
				dto.Errors[code] = ErrorDTO{Code: appErr.Code, Message: appErr.Message}
			}
		}
		h.observe("all_partial", nil, start)
		return xhttp.SuccessResponse(c, dto)
	}

	res, err := h.predictor.PredictAll(c.Request().Context())
	h.observe("all", err, start)
	if err != nil {
		return h.fail(c, "all", err)
	}
	return xhttp.SuccessResponse(c, toPredictionDTOs(res))
}

func (h *PredictionsEchoHandler) Supported(c echo.Context) error {
	return xhttp.SuccessResponse(c, SupportedDTO{
		BaseCurrency: h.predictor.BaseCurrency(),
		Currencies:   h.predictor.SupportedCurrencies(),
	})
}

func (h *PredictionsEchoHandler) One(c echo.Context) error {
	start := time.Now()
	req := &models.CurrencyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.predictor.Predict(c.Request().Context(), req.Currency)
	h.observe("one", err, start)
	if err != nil {
		return h.fail(c, "one", err)
	}
	return xhttp.SuccessResponse(c, toPredictionDTO(res))
}

func (h *PredictionsEchoHandler) Historical(c echo.Context) error {
	start := time.Now()
	req := &models.CurrencyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	series, err := h.predictor.Historical(c.Request().Context(), req.Currency)
	h.observe("historical", err, start)
	if err != nil {
		return h.fail(c, "historical", err)
	}
	return xhttp.SuccessResponse(c, SeriesDTO{
		Currency:     series.Currency,
		BaseCurrency: h.predictor.BaseCurrency(),
		Points:       toRatePointDTOs(series.Points),
	})
}

func (h *PredictionsEchoHandler) Future(c echo.Context) error {
	start := time.Now()
	req := &models.CurrencyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	points, err := h.predictor.Future(c.Request().Context(), req.Currency)
	h.observe("future", err, start)
	if err != nil {
		return h.fail(c, "future", err)
	}
	return xhttp.SuccessResponse(c, SeriesDTO{
		Currency:     req.Currency,
		BaseCurrency: h.predictor.BaseCurrency(),
		Points:       toRatePointDTOs(points),
	})
}

func (h *PredictionsEchoHandler) Change(c echo.Context) error {
	start := time.Now()
	req := &models.CurrencyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	pct, err := h.predictor.ChangePercentage(c.Request().Context(), req.Currency)
	h.observe("change", err, start)
	if err != nil {
		return h.fail(c, "change", err)
	}
	return xhttp.SuccessResponse(c, ChangeDTO{Currency: req.Currency, ChangePercentage: pct})
}

func (h *PredictionsEchoHandler) Snapshots(c echo.Context) error {
	start := time.Now()
	req := &models.SnapshotsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("snapshot history is not configured"))
	}
	if !contains(h.predictor.SupportedCurrencies(), req.Currency) {
		return h.fail(c, "snapshots", models.NewUnsupportedCurrencyError(req.Currency))
	}

	rows, err := h.store.Recent(c.Request().Context(), req.Currency, req.Limit)
	h.observe("snapshots", err, start)
	if err != nil {
		h.logger.Error("snapshots: store query failed", xlogger.String("currency", req.Currency), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("snapshot store query failed").WithError(err))
	}
	return xhttp.ListResponse(c, toSnapshotRecordDTOs(rows), int64(len(rows)))
}

func (h *PredictionsEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := mapError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("prediction request failed",
			xlogger.String("endpoint", endpoint),
			xlogger.String("code", appErr.Code),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *PredictionsEchoHandler) observe(endpoint string, err error, start time.Time) {
	code := ""
	if err != nil {
		code = mapError(err).Code
	}
	h.metrics.Observe(endpoint, code, time.Since(start).Seconds())
}

// mapError translates pipeline errors to HTTP errors with stable codes.
func mapError(err error) *xhttp.AppError {
	var pe *models.PredictionError
	if !errors.As(err, &pe) {
		return xhttp.InternalError("unexpected error").WithError(err)
	}

	status := http.StatusInternalServerError
	switch pe.Kind {
	case models.KindUnsupportedCurrency:
		status = http.StatusBadRequest
	case models.KindDataSource:
		status = http.StatusBadGateway
	}
	// pe.Message only; the wrapped cause stays in logs
	appErr := xhttp.NewAppError(pe.Code(), "", pe.Message, status).WithError(err)
	if pe.Currency != "" {
		appErr.WithParam("currency", pe.Currency)
	}
	return appErr
}

func contains(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
