package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"
)

// Gather runs fn once per item concurrently and blocks until every call returns.
// Results are indexed by input position. fn reports failures inside R, so one item
// never cancels its siblings. A panic in fn is turned into that item's result by
// recovered. A limit <= 0 means unbounded.
func Gather[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, item T) R, recovered func(item T, err error) R) []R {
	results := make([]R, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					err := fmt.Errorf("panic: %v", p)
					slog.Error("ORCHESTRATOR: recovered from panic", "error", err, "stack", string(debug.Stack()))
					results[i] = recovered(item, err)
				}
			}()
			results[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
