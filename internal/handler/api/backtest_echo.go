package api

import (
	"errors"
	"net/http"
	"time"

	models "QuantBench/internal/domain/models"
	drepo "QuantBench/internal/domain/repository"
	"QuantBench/internal/ensemble"
	"QuantBench/internal/service/ratelimit"
	"QuantBench/internal/usecase"
	xhttp "QuantBench/pkg/http"
	xlogger "QuantBench/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BacktestHandler exposes the backtest engine over Echo.
type BacktestHandler struct {
	logger  *xlogger.Logger
	runner  *usecase.BacktestRunner
	async   *usecase.AsyncBacktest // nil when the queue is disabled
	signals *usecase.SignalIngest  // nil when kafka ingestion is disabled
	history drepo.HistoryStore
	store   drepo.ResultStore // nil when persistence is disabled
	rl      *ratelimit.Limiter
}

func NewBacktestHandler(
	logger *xlogger.Logger,
	runner *usecase.BacktestRunner,
	async *usecase.AsyncBacktest,
	signals *usecase.SignalIngest,
	history drepo.HistoryStore,
	store drepo.ResultStore,
) *BacktestHandler {
	return &BacktestHandler{
		logger:  logger,
		runner:  runner,
		async:   async,
		signals: signals,
		history: history,
		store:   store,
		rl:      ratelimit.New(),
	}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/backtest", h.Run)
	g.POST("/backtest/async", h.RunAsync)
	g.GET("/backtest/:id", h.Lookup)
	g.GET("/runs", h.Runs)
	g.GET("/ensemble/weights", h.Weights)
	g.GET("/regime", h.Regime)
}

// Run executes one synchronous backtest from the request payload.
func (h *BacktestHandler) Run(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// Full simulations are heavy; throttle per caller.
	if !h.rl.Allow(c.RealIP()+":backtest", 5, 1) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	res, err := h.runner.Run(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("backtest run error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// RunAsync queues a backtest and returns the job id to poll.
func (h *BacktestHandler) RunAsync(c echo.Context) error {
	if h.async == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("async backtests are disabled"))
	}
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	jobID, err := h.async.Enqueue(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("backtest enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not enqueue backtest").WithError(err))
	}
	return xhttp.CreatedResponse(c, &models.JobState{JobID: jobID, Status: models.JobQueued})
}

// Lookup resolves an id as an async job first, then as a finished run.
func (h *BacktestHandler) Lookup(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, "id required")
	}

	if h.async != nil {
		state, err := h.async.State(c.Request().Context(), id)
		if err == nil {
			return xhttp.SuccessResponse(c, state)
		}
		if !errors.Is(err, usecase.ErrJobNotFound) {
			h.logger.Error("job lookup error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("job lookup failed").WithError(err))
		}
	}

	run, err := h.runner.GetRun(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, usecase.ErrRunNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no job or run with id %s", id))
		}
		h.logger.Error("run lookup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("run lookup failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, run)
}

// Runs lists persisted runs, newest first. Filters: strategy, from/to
// (RFC3339 or unix seconds, aligned to whole minutes), limit.
func (h *BacktestHandler) Runs(c echo.Context) error {
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("run persistence is disabled"))
	}

	now := time.Now()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.AddDate(0, 0, -7))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	from, to = xhttp.AlignRange(from, to, time.Minute)
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 100)
	if limit < 1 || limit > 1000 {
		limit = 100
	}

	runs, err := h.store.QueryRuns(c.Request().Context(), c.QueryParam("strategy"), from, to, limit)
	if err != nil {
		h.logger.Error("query runs error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("run query failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, xhttp.ListDataResponse{Rows: runs, Total: int64(len(runs))})
}

// Weights computes live ensemble weights for a symbol from the ingested
// predictions and price history.
func (h *BacktestHandler) Weights(c echo.Context) error {
	req := &models.WeightsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.signals == nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("signal ingestion is disabled"))
	}

	strategy, err := ensemble.ParseStrategy(req.Strategy)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	preds := h.signals.Latest(req.Symbol)
	if len(preds) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no live predictions for %s", req.Symbol))
	}

	res := h.runner.LiveWeights(c.Request().Context(), req.Symbol, strategy, preds, h.history.Recent(req.Symbol, req.N))
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, res)
}

// Regime reports the detected regime for a symbol's recent history.
func (h *BacktestHandler) Regime(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	prices := h.history.Recent(req.Symbol, req.N)
	if len(prices) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no price history for %s", req.Symbol))
	}

	reading := h.runner.LiveRegime(c.Request().Context(), req.Symbol, prices)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":       req.Symbol,
		"regime":       reading.Regime,
		"confidence":   reading.Confidence,
		"stability":    h.runner.RegimeStability(10),
		"observations": len(prices),
	})
}
