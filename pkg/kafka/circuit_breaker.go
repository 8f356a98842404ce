package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/stocklane/allocation-service/pkg/cloudevents"
	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
	"github.com/stocklane/allocation-service/pkg/resilience"
)

// CircuitBreakerProducer guards the instrumented producer so a broker
// outage sheds publishes fast instead of stalling outbox drains.
type CircuitBreakerProducer struct {
	producer *InstrumentedProducer
	breaker  *resilience.CircuitBreaker
	logger   *logging.Logger
}

func NewCircuitBreakerProducer(producer *InstrumentedProducer, logger *logging.Logger) *CircuitBreakerProducer {
	config := &resilience.CircuitBreakerConfig{
		Name:                  "kafka-producer",
		MaxRequests:           5,
		Interval:              time.Minute,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}
	if producer != nil && producer.metrics != nil {
		config.Metrics = producer.metrics
	}

	slogLogger := slog.Default()
	if logger != nil && logger.Logger != nil {
		slogLogger = logger.Logger
	}

	return &CircuitBreakerProducer{
		producer: producer,
		breaker:  resilience.NewCircuitBreaker(config, slogLogger),
		logger:   logger,
	}
}

// PublishEvent publishes a CloudEvent through the breaker.
func (p *CircuitBreakerProducer) PublishEvent(ctx context.Context, topic string, event *cloudevents.StockCloudEvent) error {
	_, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, p.producer.PublishEvent(ctx, topic, event)
	})
	return err
}

func (p *CircuitBreakerProducer) Close() error {
	return p.producer.Close()
}

// NewProductionProducer stacks producer, instrumentation and breaker the
// way cmd/api wires them.
func NewProductionProducer(config *Config, m *metrics.Metrics, logger *logging.Logger) *CircuitBreakerProducer {
	base := NewProducer(config)
	return NewCircuitBreakerProducer(NewInstrumentedProducer(base, m, logger), logger)
}
