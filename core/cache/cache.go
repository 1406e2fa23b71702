// Package cache defines the store of serialized results served by the poll
// endpoint. Results of a completed order never change, so entries are only
// evicted by age or capacity.
package cache

import "context"

// ResultCache stores opaque payloads by order id.
type ResultCache interface {
	Get(ctx context.Context, id string) ([]byte, bool, error)
	Set(ctx context.Context, id string, payload []byte) error
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error         { return nil }
