package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/internal/service/activity"
	"HelixPull/internal/service/broadcast"
	"HelixPull/internal/service/cache"
	"HelixPull/internal/usecase"
	apphttp "HelixPull/pkg/http"
	"HelixPull/pkg/util"
)

// HelixHandler serves the read-side API over the engine's in-memory
// state and the persisted history.
type HelixHandler struct {
	engine      *usecase.Engine
	helixStore  domrepo.HelixStore
	priceCache  *cache.PriceCache
	activityLog *activity.Log
	hub         *broadcast.Hub
	marketStore domrepo.MarketStore
	symbols     []string
}

func NewHelixHandler(
	engine *usecase.Engine,
	helixStore domrepo.HelixStore,
	priceCache *cache.PriceCache,
	activityLog *activity.Log,
	hub *broadcast.Hub,
	marketStore domrepo.MarketStore,
	symbols []string,
) *HelixHandler {
	return &HelixHandler{
		engine:      engine,
		helixStore:  helixStore,
		priceCache:  priceCache,
		activityLog: activityLog,
		hub:         hub,
		marketStore: marketStore,
		symbols:     symbols,
	}
}

func (h *HelixHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	e.GET("/ws", h.hub.Handle)

	g := e.Group("/api")
	g.GET("/helix/latest", h.Latest)
	g.GET("/helix/:timeframe", h.History)
	g.GET("/prices", h.Prices)
	g.GET("/activity", h.Activity)
	g.GET("/trades", h.Trades)
	g.GET("/candles/:timeframe", h.Candles)
}

// Latest returns the most recent record per timeframe.
func (h *HelixHandler) Latest(c echo.Context) error {
	return apphttp.SuccessResponse(c, h.engine.Latest())
}

type historyRequest struct {
	Timeframe string `param:"timeframe" validate:"required"`
	Limit     int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// History returns persisted records for one timeframe, newest first.
func (h *HelixHandler) History(c echo.Context) error {
	var req historyRequest
	if errs := apphttp.ReadAndValidateRequest(c, &req); errs != nil {
		return apphttp.BadRequestResponse(c, errs)
	}
	tf, ok := domrepo.NormalizeTimeframe(req.Timeframe)
	if !ok {
		return apphttp.AppErrorResponse(c, apphttp.BadRequestErrorf("unknown timeframe %q", req.Timeframe))
	}

	records, err := h.helixStore.History(c.Request().Context(), tf, req.Limit)
	if err != nil {
		return apphttp.AppErrorResponse(c, apphttp.InternalError("history query failed").WithError(err))
	}
	return apphttp.SuccessResponse(c, records)
}

// Prices returns the cached current price per tracked symbol.
func (h *HelixHandler) Prices(c echo.Context) error {
	prices := make(map[string]string, len(h.symbols))
	for _, sym := range h.symbols {
		if p, ok := h.priceCache.Current(sym); ok {
			prices[sym] = p
		}
	}
	return apphttp.SuccessResponse(c, prices)
}

// Activity returns the recent event ring, newest first.
func (h *HelixHandler) Activity(c echo.Context) error {
	return apphttp.SuccessResponse(c, h.activityLog.Recent())
}

type tradesRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// Trades returns sampled trade history for one symbol. Time bounds
// accept RFC3339 or epoch seconds/millis and default to the last hour.
func (h *HelixHandler) Trades(c echo.Context) error {
	var req tradesRequest
	if errs := apphttp.ReadAndValidateRequest(c, &req); errs != nil {
		return apphttp.BadRequestResponse(c, errs)
	}
	now := time.Now()
	from := util.ParseTimeDefault(req.From, now.Add(-time.Hour))
	to := util.ParseTimeDefault(req.To, now)

	trades, err := h.marketStore.QueryTrades(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		return apphttp.AppErrorResponse(c, apphttp.InternalError("trades query failed").WithError(err))
	}
	return apphttp.SuccessResponse(c, trades)
}

type candlesRequest struct {
	Timeframe string `param:"timeframe" validate:"required"`
	Symbol    string `query:"symbol" validate:"required"`
	From      string `query:"from"`
	To        string `query:"to"`
	Limit     int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// Candles returns candle history for one (symbol, timeframe).
func (h *HelixHandler) Candles(c echo.Context) error {
	var req candlesRequest
	if errs := apphttp.ReadAndValidateRequest(c, &req); errs != nil {
		return apphttp.BadRequestResponse(c, errs)
	}
	tf, ok := domrepo.NormalizeTimeframe(req.Timeframe)
	if !ok {
		return apphttp.AppErrorResponse(c, apphttp.BadRequestErrorf("unknown timeframe %q", req.Timeframe))
	}
	now := time.Now()
	from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := util.ParseTimeDefault(req.To, now)

	candles, err := h.marketStore.QueryCandles(c.Request().Context(), req.Symbol, tf, from, to, req.Limit)
	if err != nil {
		return apphttp.AppErrorResponse(c, apphttp.InternalError("candles query failed").WithError(err))
	}
	return apphttp.SuccessResponse(c, candles)
}

// Health reports liveness plus storage reachability and the subscriber
// count.
func (h *HelixHandler) Health(c echo.Context) error {
	status := map[string]interface{}{
		"status":      "ok",
		"subscribers": h.hub.Subscribers(),
		"time":        time.Now().UTC().Format(time.RFC3339),
	}
	if h.marketStore != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.marketStore.Health(ctx); err != nil {
			status["status"] = "degraded"
			status["storage"] = err.Error()
			return apphttp.DataResponse(c, http.StatusServiceUnavailable, status)
		}
		status["storage"] = "ok"
	}
	return apphttp.SuccessResponse(c, status)
}
