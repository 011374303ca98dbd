// Package exec fans a batch of per-id partitions out across a worker pool
// and reassembles their reconciliation results in deterministic order.
package exec

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"

	"btx/internal/errs"
	"btx/internal/mode"
	"btx/internal/partition"
	"btx/internal/reconcile"
	"btx/internal/temporal"
)

// Run reconciles every partition concurrently using a worker pool sized to
// workers, then returns results in the same order as partitions (already
// sorted by id key, so the output is deterministic regardless of which
// goroutine finished first).
func Run(ctx context.Context, partitions []partition.Partition, policy mode.Policy, systemDate temporal.Timestamp, workers int) ([]reconcile.Result, error) {
	if workers < 1 {
		workers = 1
	}
	if len(partitions) == 0 {
		return nil, nil
	}

	pool := pond.NewResultPool[reconcile.Result](workers)
	group := pool.NewGroupContext(ctx)

	for _, p := range partitions {
		p := p
		group.SubmitErr(func() (reconcile.Result, error) {
			if err := ctx.Err(); err != nil {
				return reconcile.Result{}, &errs.CancelledError{Cause: err}
			}
			if len(p.Updates) > 0 {
				return reconcile.Reconcile(p, systemDate), nil
			}
			res, changed := policy.HandleAbsent(p, systemDate)
			if !changed {
				return reconcile.Result{IDKey: p.IDKey}, nil
			}
			return res, nil
		})
	}

	results, err := group.Wait()
	if err != nil {
		return nil, fmt.Errorf("exec: reconcile partitions: %w", err)
	}

	out := make([]reconcile.Result, 0, len(results))
	for _, r := range results {
		if len(r.Expires) == 0 && len(r.Inserts) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
