package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/petadopt/adoption-analytics/pkg/kafka"
	"github.com/petadopt/adoption-analytics/pkg/metrics"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers report events and publishes them off the request path.
type Collector struct {
	publisher Publisher
	eventCh   chan ReportEvent
	metrics   *metrics.Metrics
	logger    *slog.Logger
	done      chan struct{}
}

func NewCollector(publisher Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan ReportEvent, bufferSize),
		metrics:   m,
		logger:    slog.Default().With("component", "report-collector"),
		done:      make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("report collector started", "buffer_size", cap(c.eventCh))
}

// Track enqueues event without blocking. A full buffer drops it.
func (c *Collector) Track(event ReportEvent) {
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.ReportEventsDropped.Inc()
		}
		c.logger.Warn("report event dropped (buffer full)", "endpoint", event.Endpoint)
	}
}

// Close stops accepting events, waits for the publish loop to finish and
// flushes anything tracked after the loop stopped. Start must have been
// called; Track must not be called after Close.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
	c.drainRemaining()
}

func (c *Collector) publish(ctx context.Context, event ReportEvent) {
	if err := c.publisher.Publish(ctx, kafka.Event{
		Key:   event.Endpoint,
		Value: event,
	}); err != nil {
		c.logger.Error("failed to publish report event", "error", err)
	}
}

// drainRemaining flushes whatever is still buffered in one batch.
func (c *Collector) drainRemaining() {
	var pending []kafka.Event
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(pending)
				return
			}
			pending = append(pending, kafka.Event{Key: event.Endpoint, Value: event})
		default:
			c.flush(pending)
			return
		}
	}
}

func (c *Collector) flush(pending []kafka.Event) {
	if len(pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishBatch(ctx, pending); err != nil {
		c.logger.Error("failed to publish remaining events", "count", len(pending), "error", err)
	}
}
