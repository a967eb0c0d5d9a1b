package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snograph/snoquery/pkg/kafka"
	"github.com/snograph/snoquery/pkg/resilience"
)

const sinkTimeout = 5 * time.Second

// Collector buffers query events and forwards them to the configured sinks
// from a background worker. Record never blocks the query path: when the
// buffer is full the event is dropped and counted.
type Collector struct {
	producer *kafka.Producer
	audit    *AuditStore
	events   chan QueryEvent
	logger   *slog.Logger

	wg      sync.WaitGroup
	dropped int64
	mu      sync.Mutex
}

// NewCollector starts the collector worker. Either sink may be nil.
func NewCollector(producer *kafka.Producer, audit *AuditStore, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	c := &Collector{
		producer: producer,
		audit:    audit,
		events:   make(chan QueryEvent, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Record enqueues an event for delivery, dropping it if the buffer is full.
func (c *Collector) Record(event QueryEvent) {
	select {
	case c.events <- event:
	default:
		c.mu.Lock()
		c.dropped++
		dropped := c.dropped
		c.mu.Unlock()
		c.logger.Warn("event buffer full, dropping event", "dropped_total", dropped)
	}
}

// Dropped returns the number of events dropped since startup.
func (c *Collector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close stops accepting events, drains the buffer, and waits for the
// worker to finish.
func (c *Collector) Close() {
	close(c.events)
	c.wg.Wait()
}

func (c *Collector) run() {
	defer c.wg.Done()
	for event := range c.events {
		c.deliver(event)
	}
}

// deliver forwards one event to each configured sink. A slow sink is cut
// off at sinkTimeout so it cannot stall the drain of the others.
func (c *Collector) deliver(event QueryEvent) {
	if c.producer != nil {
		err := resilience.WithTimeout(context.Background(), sinkTimeout, "event-publish", func(ctx context.Context) error {
			return c.producer.Publish(ctx, kafka.Event{Key: event.Operation, Value: event})
		})
		if err != nil {
			c.logger.Warn("failed to publish query event", "error", err)
		}
	}
	if c.audit != nil {
		err := resilience.WithTimeout(context.Background(), sinkTimeout, "audit-insert", func(ctx context.Context) error {
			return c.audit.Insert(ctx, event)
		})
		if err != nil {
			c.logger.Warn("failed to audit query event", "error", err)
		}
	}
}
