package usecase

import (
	"context"
	"fmt"
	"strconv"
	"time"

	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/internal/middleware"
	"HelixPull/internal/service/activity"
	"HelixPull/internal/service/binance"
	"HelixPull/internal/service/cache"
	applogger "HelixPull/pkg/logger"
)

// CandleCollector owns one candle stream for (symbol, timeframe). It
// normalizes frames into the price cache, triggers recomputation on
// material changes, and hands persistence off to the pipeline. A
// connection failure is local to this collector; it reconnects on a
// fixed delay and no other stream is affected.
type CandleCollector struct {
	stream         domrepo.Stream
	symbol         string
	timeframe      domrepo.Timeframe
	cache          *cache.PriceCache
	engine         *Engine
	pipeline       *middleware.PersistPipeline
	sink           domrepo.Publisher
	latestStore    domrepo.LatestStore // optional
	activity       *activity.Log
	metrics        domrepo.Metrics
	logger         *applogger.Logger
	reconnectDelay time.Duration
}

func NewCandleCollector(
	stream domrepo.Stream,
	symbol string,
	tf domrepo.Timeframe,
	priceCache *cache.PriceCache,
	engine *Engine,
	pipeline *middleware.PersistPipeline,
	sink domrepo.Publisher,
	latestStore domrepo.LatestStore,
	activityLog *activity.Log,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	reconnectDelay time.Duration,
) *CandleCollector {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &CandleCollector{
		stream:         stream,
		symbol:         symbol,
		timeframe:      tf,
		cache:          priceCache,
		engine:         engine,
		pipeline:       pipeline,
		sink:           sink,
		latestStore:    latestStore,
		activity:       activityLog,
		metrics:        metrics,
		logger:         log,
		reconnectDelay: reconnectDelay,
	}
}

// Run drives the connect/consume/reconnect loop until ctx ends.
func (c *CandleCollector) Run(ctx context.Context) {
	name := c.stream.Name()
	for ctx.Err() == nil {
		if err := c.stream.Connect(ctx); err != nil {
			c.logger.Warn("stream connect failed",
				applogger.String("stream", name),
				applogger.Error(err),
			)
			c.metrics.RecordError("stream_connect")
			if !waitReconnect(ctx, c.reconnectDelay) {
				return
			}
			continue
		}

		c.activity.Add(fmt.Sprintf("Connected to %s", name))
		c.logger.Info("stream connected", applogger.String("stream", name))

		c.consume(ctx)
		_ = c.stream.Close()

		if ctx.Err() != nil {
			return
		}
		c.activity.Add(fmt.Sprintf("Reconnecting %s", name))
		c.metrics.RecordReconnect(name)
		if !waitReconnect(ctx, c.reconnectDelay) {
			return
		}
	}
}

func (c *CandleCollector) consume(ctx context.Context) {
	frames, errs := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-frames:
			if !ok {
				return
			}
			c.handle(ctx, raw)
		case err, ok := <-errs:
			if ok && err != nil {
				c.logger.Warn("stream read failed",
					applogger.String("stream", c.stream.Name()),
					applogger.Error(err),
				)
			}
			return
		}
	}
}

func (c *CandleCollector) handle(ctx context.Context, raw []byte) {
	candle, err := binance.ParseCandle(raw, c.symbol, c.timeframe)
	if err != nil {
		c.logger.Debug("dropped malformed candle frame",
			applogger.String("stream", c.stream.Name()),
			applogger.Error(err),
		)
		c.metrics.RecordError("candle_parse")
		return
	}

	c.metrics.RecordMessage(c.stream.Name(), c.symbol)
	if price, err := strconv.ParseFloat(candle.Close, 64); err == nil {
		c.metrics.RecordLastPrice(c.symbol, price)
	}

	newPeriod := c.cache.SetOpen(c.symbol, c.timeframe, candle.Open, candle.OpenTime)
	material := c.cache.SetCurrent(c.symbol, candle.Close)
	if material || newPeriod {
		c.engine.Trigger(ctx)
	}

	persisted := candle
	c.pipeline.Dispatch(func(jobCtx context.Context) {
		if err := c.sink.PublishCandle(jobCtx, &persisted); err != nil {
			c.logger.Error("candle persist failed",
				applogger.String("stream", c.stream.Name()),
				applogger.Error(err),
			)
		}
	})

	if candle.IsClosed {
		c.activity.Add(fmt.Sprintf("%s %s candle closed at %s", c.symbol, c.timeframe, candle.Close))
		if c.latestStore != nil {
			c.pipeline.Dispatch(func(jobCtx context.Context) {
				if err := c.latestStore.SetLatestClose(jobCtx, c.symbol, c.timeframe, persisted.Close, persisted.CloseTime); err != nil {
					c.logger.Error("latest close mirror failed",
						applogger.String("stream", c.stream.Name()),
						applogger.Error(err),
					)
				}
			})
		}
	}
}

// waitReconnect sleeps the fixed reconnect delay, returning false when
// ctx ends first.
func waitReconnect(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
