package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// TransactionRunner runs callbacks inside one MongoDB session
// transaction. Nested calls reuse the session already on the context.
type TransactionRunner struct {
	client *mongo.Client
}

func NewTransactionRunner(client *mongo.Client) *TransactionRunner {
	return &TransactionRunner{client: client}
}

func (t *TransactionRunner) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}
