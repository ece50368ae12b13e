package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/batching-service/pkg/logging"
	"github.com/wms-platform/batching-service/pkg/metrics"
)

// InstrumentedClient wraps a Client with metrics and logging for the
// operations that go through the client itself, transactions in particular.
type InstrumentedClient struct {
	client  *Client
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewInstrumentedClient creates a new instrumented MongoDB client
func NewInstrumentedClient(client *Client, m *metrics.Metrics, logger *logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		client:  client,
		metrics: m,
		logger:  logger,
	}
}

// Database returns the underlying database handle
func (c *InstrumentedClient) Database() *mongo.Database {
	return c.client.Database()
}

// Client returns the underlying MongoDB client
func (c *InstrumentedClient) Client() *mongo.Client {
	return c.client.Client()
}

// Close disconnects the client
func (c *InstrumentedClient) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// HealthCheck performs a health check
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	return c.client.HealthCheck(ctx)
}

// WithTransaction executes a function within a transaction, recording the
// outcome and duration.
func (c *InstrumentedClient) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) error) error {
	start := time.Now()
	err := c.client.WithTransaction(ctx, fn)

	duration := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordMongoDBOperation("", "transaction", err == nil, duration)
	}
	if c.logger != nil {
		c.logger.DatabaseQuery(ctx, "", "transaction", duration, err == nil, 0)
	}
	return err
}
