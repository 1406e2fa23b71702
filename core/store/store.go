// Package store defines the durable order and result stores shared by the job
// runner (writer) and the poll endpoint (reader).
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/recsizing/core/model"
)

var (
	// ErrOrderNotFound is returned when no order has the requested id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDuplicateOrder is returned when an order id is already taken.
	ErrDuplicateOrder = errors.New("order already exists")
	// ErrAlreadyProcessed guards the single terminal transition of an order.
	ErrAlreadyProcessed = errors.New("order already processed")
)

// OrderStore tracks the processing state of sizing orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, id string, clustered bool) error
	MarkError(ctx context.Context, id string, code model.ErrorCode, message string) error
	MarkSuccess(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (model.Order, error)
}

// ResultStore persists and reads the results of completed orders.
type ResultStore interface {
	// Complete writes every result row and marks the order successful as a
	// single atomic unit.
	Complete(ctx context.Context, id string, res model.Results) error
	// LoadResults reads the rows of an order from the table family selected
	// by clustered, ordered by meter then time index.
	LoadResults(ctx context.Context, id string, clustered bool) (model.Results, error)
}

// Store combines both stores behind one handle.
type Store interface {
	OrderStore
	ResultStore
	Close() error
}
