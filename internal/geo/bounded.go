package geo

import (
	"context"
	"fmt"
	"time"
)

// Bounded caps every lookup at timeout regardless of the caller's context.
type Bounded struct {
	inner   Resolver
	timeout time.Duration
}

// NewBounded wraps inner. A nil inner yields nil so callers can skip
// enrichment entirely.
func NewBounded(inner Resolver, timeout time.Duration) Resolver {
	if inner == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Bounded{inner: inner, timeout: timeout}
}

func (b *Bounded) ResolveLocation(ctx context.Context, q Query) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		loc Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := b.inner.ResolveLocation(ctx, q)
		done <- result{loc, err}
	}()

	select {
	case r := <-done:
		return r.loc, r.err
	case <-ctx.Done():
		return Location{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}
