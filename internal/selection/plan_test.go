package selection

import (
	"regexp"
	"testing"

	"github.com/ghcr-tools/ghcr-prune/internal/forest"
	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v(id int32, digest string, updatedAt string, tags ...string) *pkgversion.Version {
	return &pkgversion.Version{
		ID:        id,
		Name:      manifest.Digest(digest),
		UpdatedAt: updatedAt,
		Tags:      tags,
	}
}

func withLayers(ver *pkgversion.Version, layerMediaType string) *pkgversion.Version {
	ver.Manifest = manifest.Manifest{
		MediaType: manifest.MediaTypeOCIManifest,
		Layers:    []manifest.ManifestRef{{Digest: "sha256:layer", MediaType: layerMediaType}},
	}
	return ver
}

func withManifests(ver *pkgversion.Version, children ...string) *pkgversion.Version {
	var refs []manifest.ManifestRef
	for _, c := range children {
		refs = append(refs, manifest.ManifestRef{Digest: manifest.Digest(c), MediaType: manifest.MediaTypeOCIManifest})
	}
	ver.Manifest = manifest.Manifest{MediaType: manifest.MediaTypeOCIIndex, Manifests: refs}
	return ver
}

func intPtr(n int) *int { return &n }

func buildForest(t *testing.T, versions []*pkgversion.Version) *forest.Forest {
	t.Helper()
	f, err := forest.Build(versions)
	require.NoError(t, err)
	return f
}

func digests(versions []*pkgversion.Version) []string {
	var out []string
	for _, v := range versions {
		out = append(out, string(v.Name))
	}
	return out
}

func TestPlan_NoRulesDeletesNothing(t *testing.T) {
	t.Parallel()

	a := withLayers(v(1, "sha256:aaa", "2024-01-01", "v1"), "application/layer")
	f := buildForest(t, []*pkgversion.Version{a})

	res, err := Plan(f, Config{})
	require.NoError(t, err)
	assert.Empty(t, res.TagsDelete)
	assert.Empty(t, res.VersionsDelete)
}

func TestPlan_IncludeSingleTagOnSingleArchImage(t *testing.T) {
	t.Parallel()

	a := withLayers(v(1, "sha256:aaa", "2024-01-01", "v1"), "application/layer")
	b := withLayers(v(2, "sha256:bbb", "2024-01-01", "v2"), "application/layer")
	f := buildForest(t, []*pkgversion.Version{a, b})

	res, err := Plan(f, Config{IncludeTags: regexp.MustCompile(`^v1$`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, res.TagsDelete)
	assert.Equal(t, []string{"sha256:aaa"}, digests(res.VersionsDelete))
}

func TestPlan_MultiArchIncludeWithSharedChild(t *testing.T) {
	t.Parallel()

	c1 := v(3, "sha256:c1", "2024-01-01")
	c2 := v(4, "sha256:c2", "2024-01-01")
	c3 := v(5, "sha256:c3", "2024-01-01")
	x := withManifests(v(1, "sha256:x", "2024-01-01", "v1"), "sha256:c1", "sha256:c2")
	y := withManifests(v(2, "sha256:y", "2024-01-01", "v2"), "sha256:c1", "sha256:c3")

	f := buildForest(t, []*pkgversion.Version{x, y, c1, c2, c3})

	res, err := Plan(f, Config{
		IncludeTags: regexp.MustCompile(`^v1$`),
		ExcludeTags: regexp.MustCompile(`^v2$`),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sha256:x", "sha256:c2"}, digests(res.VersionsDelete))
}

func TestPlan_KeepNTaggedOrdering(t *testing.T) {
	t.Parallel()

	var versions []*pkgversion.Version
	days := []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05",
		"2024-01-06", "2024-01-07", "2024-01-08", "2024-01-09", "2024-01-10"}
	for i, day := range days {
		tag := "t" + string(rune('0'+i))
		versions = append(versions, withLayers(v(int32(i+1), "sha256:"+tag, day, tag), "application/layer"))
	}
	f := buildForest(t, versions)

	res, err := Plan(f, Config{KeepNTagged: intPtr(3)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t0", "t1", "t2", "t3", "t4", "t5", "t6"}, res.TagsDelete)
	assert.Len(t, res.VersionsDelete, 7)
}

func TestPlan_ReferrerTagAttestation(t *testing.T) {
	t.Parallel()

	digestA := "sha256:1111111111111111111111111111111111111111111111111111111111111111"
	a := withLayers(v(1, digestA, "2024-01-01", "v1"), "application/layer")
	b := v(2, "sha256:2222222222222222222222222222222222222222222222222222222222222222", "2024-01-01",
		"sha256-1111111111111111111111111111111111111111111111111111111111111111")
	b.Manifest = manifest.Manifest{
		MediaType: manifest.MediaTypeOCIManifest,
		Layers:    []manifest.ManifestRef{{Digest: "sha256:statement", MediaType: "application/vnd.in-toto+json"}},
	}

	f := buildForest(t, []*pkgversion.Version{a, b})
	require.Equal(t, pkgversion.TypeAttestation, b.Type)
	require.Same(t, a, b.Parent())

	res, err := Plan(f, Config{IncludeTags: regexp.MustCompile(`^v1$`)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{digestA, string(b.Name)}, digests(res.VersionsDelete))
}

func TestPlan_OCI11Subject(t *testing.T) {
	t.Parallel()

	p := withLayers(v(1, "sha256:aaa", "2024-01-01"), "application/layer")
	subj := manifest.ManifestRef{Digest: "sha256:aaa", MediaType: manifest.MediaTypeOCIManifest}
	q := v(2, "sha256:bbb", "2024-01-01")
	q.Manifest = manifest.Manifest{
		MediaType: manifest.MediaTypeOCIManifest,
		Subject:   &subj,
		Layers:    []manifest.ManifestRef{{Digest: "sha256:statement", MediaType: "application/vnd.in-toto+json"}},
	}

	f := buildForest(t, []*pkgversion.Version{p, q})
	require.Equal(t, []*pkgversion.Version{p}, f.Roots)

	res, err := Plan(f, Config{KeepNUntagged: intPtr(1)})
	require.NoError(t, err)
	assert.Empty(t, res.VersionsDelete)
}

func TestPlan_KeepNUntaggedSchedulesWholeClosureOfDroppedRoot(t *testing.T) {
	t.Parallel()

	c1 := v(3, "sha256:c1", "2024-01-02")
	c2 := v(4, "sha256:c2", "2024-01-02")
	c3 := v(5, "sha256:c3", "2024-01-01")
	x := withManifests(v(1, "sha256:x", "2024-01-02"), "sha256:c1", "sha256:c2")
	y := withManifests(v(2, "sha256:y", "2024-01-01"), "sha256:c3")

	f := buildForest(t, []*pkgversion.Version{x, y, c1, c2, c3})

	res, err := Plan(f, Config{KeepNUntagged: intPtr(1)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sha256:y", "sha256:c3"}, digests(res.VersionsDelete))
}

func TestPlan_TagMatchingBothIncludeAndExcludeIsKept(t *testing.T) {
	t.Parallel()

	a := withLayers(v(1, "sha256:aaa", "2024-01-01", "v1"), "application/layer")
	f := buildForest(t, []*pkgversion.Version{a})

	res, err := Plan(f, Config{
		IncludeTags: regexp.MustCompile(`^v1$`),
		ExcludeTags: regexp.MustCompile(`^v1$`),
	})
	require.NoError(t, err)
	assert.NotContains(t, res.TagsDelete, "v1")
}
