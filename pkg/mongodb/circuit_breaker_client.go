package mongodb

import (
	"context"
	"log/slog"
	"time"

	"github.com/stocklane/allocation-service/pkg/logging"
	"github.com/stocklane/allocation-service/pkg/metrics"
	"github.com/stocklane/allocation-service/pkg/resilience"
	"go.mongodb.org/mongo-driver/mongo"
)

// CircuitBreakerClient fails transactions and health checks fast while
// Mongo is down, so request handlers return 503s instead of piling up
// behind driver timeouts.
type CircuitBreakerClient struct {
	client  *InstrumentedClient
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

func NewCircuitBreakerClient(client *InstrumentedClient, logger *logging.Logger) *CircuitBreakerClient {
	config := &resilience.CircuitBreakerConfig{
		Name:                  "mongodb",
		MaxRequests:           5,
		Interval:              time.Minute,
		Timeout:               30 * time.Second,
		FailureThreshold:      5,
		FailureRatioThreshold: 0.5,
		MinRequestsToTrip:     10,
	}
	if client != nil && client.metrics != nil {
		config.Metrics = client.metrics
	}

	slogLogger := slog.Default()
	if logger != nil && logger.Logger != nil {
		slogLogger = logger.Logger
	}

	return &CircuitBreakerClient{
		client:  client,
		breaker: resilience.NewCircuitBreaker(config, slogLogger),
		logger:  logger,
	}
}

// Database returns the raw database handle for repository reads. Reads
// stay outside the breaker: a degraded secondary read is better than
// none, and the transaction path already trips the breaker on real
// outages.
func (c *CircuitBreakerClient) Database() *mongo.Database {
	return c.client.Database()
}

func (c *CircuitBreakerClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

func (c *CircuitBreakerClient) HealthCheck(ctx context.Context) error {
	_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.client.HealthCheck(ctx)
	})
	return err
}

func (c *CircuitBreakerClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.client.WithTransaction(ctx, fn)
	})
	return err
}

// Underlying exposes the instrumented client.
func (c *CircuitBreakerClient) Underlying() *InstrumentedClient {
	return c.client
}

// NewProductionClient builds the full stack used by cmd/api: driver
// client with a pool gauge monitor, tracing instrumentation, then the
// circuit breaker.
func NewProductionClient(ctx context.Context, config *Config, m *metrics.Metrics, logger *logging.Logger) (*CircuitBreakerClient, error) {
	if m != nil && config.PoolMonitor == nil {
		config.PoolMonitor = NewPoolGaugeMonitor(m)
	}

	baseClient, err := NewClient(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewCircuitBreakerClient(NewInstrumentedClient(baseClient, m, logger), logger), nil
}
