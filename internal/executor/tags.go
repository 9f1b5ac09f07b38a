package executor

import (
	"context"
	"fmt"

	"github.com/ghcr-tools/ghcr-prune/internal/forest"
	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
)

// deleteTags runs the ghost-manifest tag-detachment protocol of §4.8
// sequentially, one tag at a time, because each rewrite mutates the live
// version list and requires a re-list. A failure is fatal: the in-memory
// model has diverged from the registry, per §7's "tag-deletion failure is
// fatal" propagation rule.
func (e *Executor) deleteTags(ctx context.Context, all []*pkgversion.Version, f *forest.Forest, tags []string, report *Report) ([]*pkgversion.Version, error) {
	for _, tag := range tags {
		owner := f.ByKey(tag)
		if owner == nil {
			continue // already gone (e.g. owned by a version deleted by an earlier tag's ghost-version cleanup)
		}

		if e.DryRun {
			removeTagFrom(owner, tag)
			report.TagsDeleted = append(report.TagsDeleted, tag)
			continue
		}

		clone := cloneManifestBlanked(owner.Manifest)
		if err := e.Gateway.PutManifest(ctx, e.Owner, e.Package, tag, clone); err != nil {
			return all, fmt.Errorf("executor: detaching tag %q: %w", tag, err)
		}

		relisted, err := e.Client.ListVersions(ctx, e.Owner, e.OwnerType, e.Package)
		if err != nil {
			return all, fmt.Errorf("executor: relisting after detaching tag %q: %w", tag, err)
		}

		ghost := findByTag(relisted, tag)
		if ghost == nil {
			return all, fmt.Errorf("executor: no version found carrying detached tag %q after relist", tag)
		}

		if err := e.Client.DeleteVersion(ctx, e.Owner, e.OwnerType, e.Package, ghost.ID); err != nil {
			return all, fmt.Errorf("executor: deleting ghost version for tag %q: %w", tag, err)
		}

		removeTagFrom(owner, tag)
		report.TagsDeleted = append(report.TagsDeleted, tag)
	}
	return all, nil
}

// cloneManifestBlanked clones m and blanks whichever of manifests/layers is
// non-empty, per §4.8 step 2: "the clone now points at nothing."
func cloneManifestBlanked(m manifest.Manifest) manifest.Manifest {
	clone := m
	if len(clone.Manifests) > 0 {
		clone.Manifests = nil
	} else {
		clone.Layers = nil
	}
	return clone
}

func findByTag(versions []pkgversion.Version, tag string) *pkgversion.Version {
	for i := range versions {
		for _, t := range versions[i].Tags {
			if t == tag {
				return &versions[i]
			}
		}
	}
	return nil
}

func removeTagFrom(v *pkgversion.Version, tag string) {
	out := v.Tags[:0]
	for _, t := range v.Tags {
		if t != tag {
			out = append(out, t)
		}
	}
	v.Tags = out
}
