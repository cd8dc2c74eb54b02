package api

import (
	"errors"
	"os"

	"github.com/labstack/echo/v4"

	models "daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	"daytrade/internal/usecase"
	xhttp "daytrade/pkg/http"
	xlogger "daytrade/pkg/logger"
	"daytrade/pkg/queue"
)

// PredictionsHandler exposes the prediction API over Echo.
type PredictionsHandler struct {
	logger    *xlogger.Logger
	predictor *usecase.Predictor
	queue     queue.Service
	barStore  drepo.BarStore
}

// NewPredictionsHandler creates the handler. queue and barStore may be
// nil; the build endpoint and deep health check degrade accordingly.
func NewPredictionsHandler(logger *xlogger.Logger, predictor *usecase.Predictor, q queue.Service, barStore drepo.BarStore) *PredictionsHandler {
	return &PredictionsHandler{logger: logger, predictor: predictor, queue: q, barStore: barStore}
}

func (h *PredictionsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/predictions", h.Predict)
	g.GET("/models/latest", h.LatestModel)
	g.POST("/datasets/build", h.BuildDataset)
}

func (h *PredictionsHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok", "model": "ready"}
	if h.barStore != nil {
		if err := h.barStore.Health(c.Request().Context()); err != nil {
			h.logger.Warn("health check storage error", xlogger.Error(err))
			status["status"] = "degraded"
			status["storage"] = err.Error()
		}
	}
	if _, err := h.predictor.LatestReport(); err != nil {
		status["model"] = "missing"
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *PredictionsHandler) Predict(c echo.Context) error {
	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	pred, err := h.predictor.Predict(c.Request().Context(), req.Symbol)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return xhttp.NotFoundResponse(c, "no trained model available")
		}
		h.logger.Error("predict usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, pred)
}

func (h *PredictionsHandler) LatestModel(c echo.Context) error {
	report, err := h.predictor.LatestReport()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return xhttp.NotFoundResponse(c, "no trained model available")
		}
		h.logger.Error("latest model error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *PredictionsHandler) BuildDataset(c echo.Context) error {
	if h.queue == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("background queue is not configured"))
	}

	req := &models.BuildDatasetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.queue.PublishMessage(c.Request().Context(), usecase.DatasetBuildMessageType, req); err != nil {
		h.logger.Error("enqueue dataset build error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.AcceptedResponse(c, map[string]interface{}{
		"status":  "queued",
		"symbols": req.Symbols,
	})
}
