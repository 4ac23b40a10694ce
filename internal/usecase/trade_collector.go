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

// tradeSampleModulus keeps one trade in a hundred for history. Ticks
// arrive far faster than candle updates and full retention buys
// nothing the candle series does not already hold.
const tradeSampleModulus = 100

// TradeCollector owns the raw trade stream for one symbol. Every tick
// refreshes the shared current price; a material move triggers a
// recomputation pass. Trades are persisted on a 1-in-N sample.
type TradeCollector struct {
	stream         domrepo.Stream
	symbol         string
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

func NewTradeCollector(
	stream domrepo.Stream,
	symbol string,
	priceCache *cache.PriceCache,
	engine *Engine,
	pipeline *middleware.PersistPipeline,
	sink domrepo.Publisher,
	latestStore domrepo.LatestStore,
	activityLog *activity.Log,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	reconnectDelay time.Duration,
) *TradeCollector {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &TradeCollector{
		stream:         stream,
		symbol:         symbol,
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
func (c *TradeCollector) Run(ctx context.Context) {
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

func (c *TradeCollector) consume(ctx context.Context) {
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

func (c *TradeCollector) handle(ctx context.Context, raw []byte) {
	trade, err := binance.ParseTrade(raw, c.symbol)
	if err != nil {
		c.logger.Debug("dropped malformed trade frame",
			applogger.String("stream", c.stream.Name()),
			applogger.Error(err),
		)
		c.metrics.RecordError("trade_parse")
		return
	}

	c.metrics.RecordMessage(c.stream.Name(), c.symbol)
	if price, err := strconv.ParseFloat(trade.Price, 64); err == nil {
		c.metrics.RecordLastPrice(c.symbol, price)
	}

	if c.cache.SetCurrent(c.symbol, trade.Price) {
		c.engine.Trigger(ctx)
		if c.latestStore != nil {
			mirrored := trade
			c.pipeline.Dispatch(func(jobCtx context.Context) {
				if err := c.latestStore.SetLatestPrice(jobCtx, c.symbol, mirrored.Price); err != nil {
					c.logger.Error("latest price mirror failed",
						applogger.String("symbol", c.symbol),
						applogger.Error(err),
					)
				}
			})
		}
	}

	if trade.TradeID%tradeSampleModulus == 0 {
		sampled := trade
		c.pipeline.Dispatch(func(jobCtx context.Context) {
			if err := c.sink.PublishTrade(jobCtx, &sampled); err != nil {
				c.logger.Error("trade persist failed",
					applogger.String("symbol", c.symbol),
					applogger.Error(err),
				)
			}
		})
	}
}
