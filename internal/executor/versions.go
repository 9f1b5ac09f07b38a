package executor

import (
	"context"

	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/sourcegraph/conc/pool"
)

// deleteVersions deletes every version in toDelete through a fixed-size-3
// worker pool, grounded in the teacher's cmd/delete.go
// calculateRefCountsDirect pattern but built on conc's ResultPool rather
// than a hand-rolled semaphore+WaitGroup: it gives the same bounded
// fan-out without the manual channel bookkeeping. Individual failures are
// logged and counted (ErrPlanApplyFailure), never aborting the run, per §7.
func (e *Executor) deleteVersions(ctx context.Context, toDelete []*pkgversion.Version, report *Report) error {
	if len(toDelete) == 0 {
		return nil
	}

	type outcome struct {
		v   *pkgversion.Version
		err error
	}

	p := pool.NewWithResults[outcome]().WithMaxGoroutines(deletionPoolSize)

	for _, v := range toDelete {
		v := v
		p.Go(func() outcome {
			if e.DryRun {
				return outcome{v: v}
			}
			err := e.Client.DeleteVersion(ctx, e.Owner, e.OwnerType, e.Package, v.ID)
			return outcome{v: v, err: err}
		})
	}

	var failed int
	for _, r := range p.Wait() {
		if r.err != nil {
			failed++
			e.logf("%v: version %s (id=%d): %v", ErrPlanApplyFailure, r.v.Name, r.v.ID, r.err)
			continue
		}
		report.VersionsDeleted = append(report.VersionsDeleted, string(r.v.Name))
	}
	report.VersionFailures = failed

	return nil
}
