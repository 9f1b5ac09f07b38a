package forest

import (
	"io"
	"strconv"

	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/ghcr-tools/ghcr-prune/internal/tree"
)

// Forest is the resolved graph over one package's versions: every version
// ever observed, the subset with no parent, and an index usable to look any
// of them back up by digest, numeric id, or tag. Grounded on the teacher's
// internal/discovery.VersionCache, generalized from a by-digest/by-id index
// into the three-key lookup §4.4's resolver passes need.
type Forest struct {
	All      []*pkgversion.Version
	Roots    []*pkgversion.Version
	byKey    map[string]*pkgversion.Version
	byDigest map[manifest.Digest]*pkgversion.Version
}

// ByKey resolves a digest, stringified id, or tag to the version that owns
// it, or nil if nothing in the forest matches.
func (f *Forest) ByKey(key string) *pkgversion.Version {
	return f.byKey[key]
}

// Children returns n's children, or nil for a leaf. Exists so callers (the
// selection engine, graph rendering) never need to import tree.Node's
// accessor directly.
func Children(n *pkgversion.Version) []*pkgversion.Version {
	if n == nil {
		return nil
	}
	return n.Children()
}

// Build resolves every linkage between versions and classifies each one,
// per §4.4-§4.5. It mutates the versions in place (resetting and then
// repopulating their parent/child/Type state) and is idempotent: calling it
// again over a changed slice (after a deletion, per §6) produces a forest
// consistent with the new set.
func Build(versions []*pkgversion.Version) (*Forest, error) {
	for _, v := range versions {
		v.Reset()
	}

	byKey := make(map[string]*pkgversion.Version, len(versions)*2)
	byDigest := make(map[manifest.Digest]*pkgversion.Version, len(versions))
	working := make(map[manifest.Digest]*pkgversion.Version, len(versions))
	for _, v := range versions {
		byKey[string(v.Name)] = v
		byKey[strconv.Itoa(int(v.ID))] = v
		byDigest[v.Name] = v
		working[v.Name] = v
		for _, t := range v.Tags {
			byKey[t] = v
		}
	}

	lookup := func(key string) *pkgversion.Version { return byKey[key] }

	if err := resolveManifestChildren(working, lookup); err != nil {
		return nil, err
	}
	if err := resolveReferrerSubject(working, lookup); err != nil {
		return nil, err
	}
	if err := resolveReferrerTag(working, lookup); err != nil {
		return nil, err
	}

	for _, v := range versions {
		v.Type = classify(v)
	}

	var roots []*pkgversion.Version
	for _, v := range versions {
		if v.Parent() == nil {
			roots = append(roots, v)
		}
	}

	return &Forest{
		All:      versions,
		Roots:    roots,
		byKey:    byKey,
		byDigest: byDigest,
	}, nil
}

// Render writes an ASCII tree of the forest's roots to w, labeling each node
// with label. Thin wrapper over tree.Render so cmd/ never imports
// internal/tree directly.
func (f *Forest) Render(w io.Writer, label func(*pkgversion.Version) string) {
	tree.Render[*pkgversion.Version](w, f.Roots, label, Children)
}
