package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages for a single topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

// Consumer runs one reader per registered topic and a shared worker
// pool. Failed messages are retried with bounded backoff, then routed
// to the DLQ topic if one is configured.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	msgCh    chan consumerMessage
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	dlq      *kafka.Writer
	hook     ConsumerHook
}

type consumerMessage struct {
	topic string
	data  []byte
	km    kafka.Message
}

// NewConsumer builds a consumer from options.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		Workers:    runtime.NumCPU(),
		BufferSize: 1024,
		RetryMax:   3,
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: 5 * time.Second,
		MinBytes:   1,
		MaxBytes:   10 << 20,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group id is required")
	}

	c := &Consumer{
		cfg:      cfg,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		msgCh:    make(chan consumerMessage, cfg.BufferSize),
		stopCh:   make(chan struct{}),
		hook:     NoopHook{},
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.DLQTopic,
			Balancer: &kafka.LeastBytes{},
		}
	}
	return c, nil
}

// WithConsumerHook replaces the default no-op hook.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler attaches a handler for its topic.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	c.handlers[h.Topic()] = h
}

// Start launches readers and workers and blocks until Stop.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.wg.Add(1)
		go c.readLoop(topic, r)
	}

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	c.wg.Wait()
	return nil
}

func (c *Consumer) readLoop(topic string, r *kafka.Reader) {
	defer c.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.stopCh
		cancel()
	}()

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("kafka consumer: read %s: %v", topic, err)
			select {
			case <-c.stopCh:
				return
			case <-time.After(c.cfg.BackoffMin):
			}
			continue
		}
		c.hook.OnMessage(topic, m.Partition, m.Offset)
		select {
		case c.msgCh <- consumerMessage{topic: topic, data: m.Value, km: m}:
		case <-c.stopCh:
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case m := <-c.msgCh:
			c.handle(m)
		}
	}
}

func (c *Consumer) handle(m consumerMessage) {
	h := c.handlers[m.topic]
	backoff := c.cfg.BackoffMin
	var err error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = h.Handle(ctx, m.data)
		cancel()
		if err == nil {
			c.hook.OnHandled(m.topic, nil)
			return
		}
		select {
		case <-c.stopCh:
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > c.cfg.BackoffMax {
			backoff = c.cfg.BackoffMax
		}
	}
	c.hook.OnHandled(m.topic, err)
	if c.dlq != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dlqErr := c.dlq.WriteMessages(ctx, kafka.Message{Key: m.km.Key, Value: m.km.Value})
		cancel()
		c.hook.OnDLQ(m.topic, dlqErr)
		if dlqErr != nil {
			log.Printf("kafka consumer: dlq write %s: %v", m.topic, dlqErr)
		}
	}
}

// Stop shuts the consumer down and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for topic, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close reader %s: %w", topic, err)
		}
	}
	if c.dlq != nil {
		if err := c.dlq.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
