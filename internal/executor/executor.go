package executor

import (
	"context"
	"fmt"

	"github.com/ghcr-tools/ghcr-prune/internal/forest"
	"github.com/ghcr-tools/ghcr-prune/internal/ghapi"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/ghcr-tools/ghcr-prune/internal/registry"
	"github.com/ghcr-tools/ghcr-prune/internal/selection"
)

// deletionPoolSize is the fixed worker-pool size for version deletions,
// grounded precisely in the teacher's cmd/delete.go calculateRefCountsDirect
// semaphore pattern, generalized from that function's ref-count tally to a
// deletion-outcome tally (§4.8, §5).
const deletionPoolSize = 3

// GHAPIClient is the subset of internal/ghapi.Client the executor needs,
// expressed as an interface so tests can supply a fake, mirroring the
// teacher's packageClient interface.
type GHAPIClient interface {
	ghapi.VersionLister
	ghapi.VersionDeleter
}

// Executor wires the registry gateway, the GitHub Packages client, and the
// selection config together; there is no global/singleton state — every
// dependency is an explicit field, mirroring the teacher's
// dependency-injected discover.PackageDiscoverer (§9 DESIGN NOTES).
type Executor struct {
	Gateway   registry.Gateway
	Client    GHAPIClient
	Owner     string
	OwnerType string
	Package   string
	Config    selection.Config
	DryRun    bool

	// Log receives one line per notable step; nil is valid and means
	// "don't log" (tests that only care about the plan leave this unset).
	Log func(string)

	// RenderPlan, if set, is invoked with the just-ingested forest and the
	// freshly-computed plan before any deletion is applied, so a caller can
	// tree.Render the run's version-delete plan per §7. nil is valid and
	// means "don't render" (tests that only care about outcomes leave this
	// unset).
	RenderPlan func(f *forest.Forest, plan selection.Result)
}

// Report summarizes one Run invocation for the stage-grouped logging this
// feeds into (internal/logging's StageLogger).
type Report struct {
	Plan            selection.Result
	TagsDeleted     []string
	VersionsDeleted []string
	VersionFailures int
}

func (e *Executor) logf(format string, args ...interface{}) {
	if e.Log != nil {
		e.Log(fmt.Sprintf(format, args...))
	}
}

// LoadForest lists every version of owner/pkg, fetches each one's manifest
// through gateway, and builds the forest over the result — the ingest step
// shared by Run and by the retained exploratory `graph` command, which only
// needs to inspect the forest, not act on a selection plan.
func LoadForest(ctx context.Context, client GHAPIClient, gateway registry.Gateway, owner, ownerType, pkg string) ([]*pkgversion.Version, *forest.Forest, error) {
	loaded, err := client.ListVersions(ctx, owner, ownerType, pkg)
	if err != nil {
		return nil, nil, fmt.Errorf("executor: listing versions: %w", err)
	}

	all := make([]*pkgversion.Version, len(loaded))
	for i := range loaded {
		all[i] = &loaded[i]
	}

	for _, v := range all {
		m, err := gateway.FetchManifest(ctx, owner, pkg, v.Name)
		if err != nil {
			if err == registry.ErrManifestNotFound {
				continue // §7: dropped from the forest, kept deletable
			}
			return nil, nil, fmt.Errorf("executor: fetching manifest %s: %w", v.Name, err)
		}
		v.Manifest = m
	}

	f, err := forest.Build(all)
	if err != nil {
		return nil, nil, fmt.Errorf("executor: building forest: %w", err)
	}
	return all, f, nil
}

// Run executes the full ingest → build → plan → apply pipeline described by
// §2's control flow, in dry-run mode when e.DryRun is set.
func (e *Executor) Run(ctx context.Context) (Report, error) {
	e.logf("loading package versions for %s/%s", e.Owner, e.Package)
	all, f, err := LoadForest(ctx, e.Client, e.Gateway, e.Owner, e.OwnerType, e.Package)
	if err != nil {
		return Report{}, err
	}
	e.logf("fetched %d versions", len(all))

	e.logf("computing selection plan")
	plan, err := selection.Plan(f, e.Config)
	if err != nil {
		return Report{}, fmt.Errorf("executor: computing plan: %w", err)
	}

	report := Report{Plan: plan}

	if e.RenderPlan != nil {
		e.RenderPlan(f, plan)
	}

	e.logf("deleting %d tags", len(plan.TagsDelete))
	all, err = e.deleteTags(ctx, all, f, plan.TagsDelete, &report)
	if err != nil {
		return report, err
	}

	e.logf("deleting %d versions", len(plan.VersionsDelete))
	if err := e.deleteVersions(ctx, plan.VersionsDelete, &report); err != nil {
		return report, err
	}

	return report, nil
}
