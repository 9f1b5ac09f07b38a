package executor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ghcr-tools/ghcr-prune/internal/forest"
	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/ghcr-tools/ghcr-prune/internal/registry"
	"github.com/ghcr-tools/ghcr-prune/internal/selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectionConfigKeepNTagged(n int) selection.Config {
	return selection.Config{KeepNTagged: &n}
}

// fakeClient is a fake GHAPIClient recording every DeleteVersion call and
// serving a fixed, mutable version list, mirroring the teacher's style of
// testing cmd/delete.go against an in-memory fakePackageClient.
type fakeClient struct {
	mu       sync.Mutex
	versions []pkgversion.Version
	deleted  []int32
	failIDs  map[int32]bool
}

func (c *fakeClient) ListVersions(ctx context.Context, owner, ownerType, pkg string) ([]pkgversion.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pkgversion.Version, len(c.versions))
	copy(out, c.versions)
	return out, nil
}

func (c *fakeClient) DeleteVersion(ctx context.Context, owner, ownerType, pkg string, id int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failIDs[id] {
		return errors.New("fake: delete refused")
	}
	c.deleted = append(c.deleted, id)
	for i, v := range c.versions {
		if v.ID == id {
			c.versions = append(c.versions[:i], c.versions[i+1:]...)
			break
		}
	}
	return nil
}

// fakeGateway serves manifests from an in-memory map keyed by digest, and
// records every PutManifest call instead of touching a real registry.
type fakeGateway struct {
	mu        sync.Mutex
	manifests map[manifest.Digest]manifest.Manifest
	puts      []string // tags PutManifest was called with
}

func (g *fakeGateway) FetchManifest(ctx context.Context, owner, pkg string, digest manifest.Digest) (manifest.Manifest, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.manifests[digest]
	if !ok {
		return manifest.Manifest{}, registry.ErrManifestNotFound
	}
	return m, nil
}

func (g *fakeGateway) PutManifest(ctx context.Context, owner, pkg, tag string, m manifest.Manifest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.puts = append(g.puts, tag)
	// The ghost-manifest protocol relists immediately after the put, so the
	// relisted version must carry the tag; fakeClient.versions already has
	// it since deleteTags never removes the tag from the client's own copy.
	return nil
}

func singleArchVersion(id int32, digest string, tags ...string) pkgversion.Version {
	return pkgversion.Version{
		ID:   id,
		Name: manifest.Digest(digest),
		Tags: tags,
		Manifest: manifest.Manifest{
			MediaType: manifest.MediaTypeOCIManifest,
			Layers: []manifest.ManifestRef{
				{Digest: manifest.Digest(digest + "-layer"), MediaType: "application/vnd.oci.image.layer.v1.tar+gzip"},
			},
		},
		UpdatedAt: "2025-01-01T00:00:00Z",
	}
}

func TestRun_DeletesUnkeptVersionsAndReportsThem(t *testing.T) {
	t.Parallel()

	v1 := singleArchVersion(1, "sha256:aaaa", "v1")
	v2 := singleArchVersion(2, "sha256:bbbb") // untagged, unkept with KeepNUntagged 0

	client := &fakeClient{versions: []pkgversion.Version{v1, v2}, failIDs: map[int32]bool{}}
	gateway := &fakeGateway{manifests: map[manifest.Digest]manifest.Manifest{
		v1.Name: v1.Manifest,
		v2.Name: v2.Manifest,
	}}

	zero := 0
	exec := &Executor{
		Gateway: gateway,
		Client:  client,
		Owner:   "acme",
		Package: "widget",
		Config:  selection.Config{KeepNUntagged: &zero},
	}

	report, err := exec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{string(v2.Name)}, report.VersionsDeleted)
	assert.Zero(t, report.VersionFailures)
	assert.Equal(t, []int32{2}, client.deleted)
}

func TestRun_InvokesRenderPlanBeforeApplying(t *testing.T) {
	t.Parallel()

	v1 := singleArchVersion(1, "sha256:aaaa", "v1")
	v2 := singleArchVersion(2, "sha256:bbbb")

	client := &fakeClient{versions: []pkgversion.Version{v1, v2}, failIDs: map[int32]bool{}}
	gateway := &fakeGateway{manifests: map[manifest.Digest]manifest.Manifest{
		v1.Name: v1.Manifest,
		v2.Name: v2.Manifest,
	}}

	var sawPlan selection.Result
	var renderedRootCount int
	var deletedAtRenderTime []int32
	zero := 0
	exec := &Executor{
		Gateway: gateway,
		Client:  client,
		Owner:   "acme",
		Package: "widget",
		Config:  selection.Config{KeepNUntagged: &zero},
		RenderPlan: func(f *forest.Forest, plan selection.Result) {
			sawPlan = plan
			renderedRootCount = len(f.Roots)
			deletedAtRenderTime = append([]int32{}, client.deleted...)
		},
	}

	_, err := exec.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sawPlan.VersionsDelete, 1)
	assert.Equal(t, v2.Name, sawPlan.VersionsDelete[0].Name)
	assert.Equal(t, 2, renderedRootCount)
	// The callback must fire before deletion mutates the client.
	assert.Empty(t, deletedAtRenderTime)
	assert.Equal(t, []int32{2}, client.deleted)
}

func TestRun_DryRunNeverCallsDeleteVersion(t *testing.T) {
	t.Parallel()

	v1 := singleArchVersion(1, "sha256:aaaa")

	client := &fakeClient{versions: []pkgversion.Version{v1}}
	gateway := &fakeGateway{manifests: map[manifest.Digest]manifest.Manifest{v1.Name: v1.Manifest}}

	zero := 0
	exec := &Executor{Gateway: gateway, Client: client, Owner: "acme", Package: "widget", Config: selection.Config{KeepNUntagged: &zero}, DryRun: true}

	report, err := exec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{string(v1.Name)}, report.VersionsDeleted)
	assert.Empty(t, client.deleted)
}

func TestRun_VersionDeletionFailureIsCountedNotFatal(t *testing.T) {
	t.Parallel()

	v1 := singleArchVersion(1, "sha256:aaaa")
	v2 := singleArchVersion(2, "sha256:bbbb")

	client := &fakeClient{versions: []pkgversion.Version{v1, v2}, failIDs: map[int32]bool{1: true}}
	gateway := &fakeGateway{manifests: map[manifest.Digest]manifest.Manifest{
		v1.Name: v1.Manifest,
		v2.Name: v2.Manifest,
	}}

	var logged []string
	zero := 0
	exec := &Executor{
		Gateway: gateway,
		Client:  client,
		Owner:   "acme",
		Package: "widget",
		Config:  selection.Config{KeepNUntagged: &zero},
		Log:     func(line string) { logged = append(logged, line) },
	}

	report, err := exec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.VersionFailures)
	assert.Equal(t, []string{string(v2.Name)}, report.VersionsDeleted)
	assert.NotEmpty(t, logged)
}

func TestRun_MissingManifestIsDroppedFromForestButStaysDeletable(t *testing.T) {
	t.Parallel()

	v1 := singleArchVersion(1, "sha256:aaaa")

	client := &fakeClient{versions: []pkgversion.Version{v1}}
	gateway := &fakeGateway{manifests: map[manifest.Digest]manifest.Manifest{}} // empty: FetchManifest always misses

	zero := 0
	exec := &Executor{Gateway: gateway, Client: client, Owner: "acme", Package: "widget", Config: selection.Config{KeepNUntagged: &zero}}

	report, err := exec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{string(v1.Name)}, report.VersionsDeleted)
}

func TestLoadForest_PropagatesListError(t *testing.T) {
	t.Parallel()

	client := &erroringListClient{}
	gateway := &fakeGateway{manifests: map[manifest.Digest]manifest.Manifest{}}

	_, _, err := LoadForest(context.Background(), client, gateway, "acme", "org", "widget")
	assert.Error(t, err)
}

type erroringListClient struct{}

func (erroringListClient) ListVersions(ctx context.Context, owner, ownerType, pkg string) ([]pkgversion.Version, error) {
	return nil, errors.New("boom")
}

func (erroringListClient) DeleteVersion(ctx context.Context, owner, ownerType, pkg string, id int32) error {
	return nil
}

func TestDeleteVersions_RespectsWorkerPoolBound(t *testing.T) {
	t.Parallel()

	var active, maxActive int
	var mu sync.Mutex

	toDelete := make([]*pkgversion.Version, 0, 10)
	for i := int32(1); i <= 10; i++ {
		v := singleArchVersion(i, "sha256:v"+string(rune('a'+i)))
		toDelete = append(toDelete, &v)
	}

	client := &countingClient{
		before: func() {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
		},
		after: func() {
			mu.Lock()
			active--
			mu.Unlock()
		},
	}

	exec := &Executor{Client: client}
	var report Report
	err := exec.deleteVersions(context.Background(), toDelete, &report)
	require.NoError(t, err)

	assert.LessOrEqual(t, maxActive, deletionPoolSize)
	assert.Len(t, report.VersionsDeleted, 10)

	ids := make([]int32, 0, len(client.seen))
	for _, id := range client.seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Len(t, ids, 10)
}

type countingClient struct {
	mu     sync.Mutex
	seen   []int32
	before func()
	after  func()
}

func (c *countingClient) ListVersions(ctx context.Context, owner, ownerType, pkg string) ([]pkgversion.Version, error) {
	return nil, nil
}

func (c *countingClient) DeleteVersion(ctx context.Context, owner, ownerType, pkg string, id int32) error {
	c.before()
	defer c.after()
	c.mu.Lock()
	c.seen = append(c.seen, id)
	c.mu.Unlock()
	return nil
}

// ghostClient models the registry's actual ghost-manifest behavior: a
// PutManifest call against a tag doesn't mutate the tagged version in
// place, it detaches the tag from its current owner and hands it to a
// brand new "ghost" version, exactly as §4.8 describes. deleteTags then
// relists, finds that ghost by its newly-carried tag, and deletes it.
type ghostClient struct {
	mu       sync.Mutex
	versions []pkgversion.Version
	nextID   int32
	deleted  []int32
}

func (c *ghostClient) ListVersions(ctx context.Context, owner, ownerType, pkg string) ([]pkgversion.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pkgversion.Version, len(c.versions))
	copy(out, c.versions)
	return out, nil
}

func (c *ghostClient) DeleteVersion(ctx context.Context, owner, ownerType, pkg string, id int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, id)
	for i, v := range c.versions {
		if v.ID == id {
			c.versions = append(c.versions[:i], c.versions[i+1:]...)
			break
		}
	}
	return nil
}

type ghostGateway struct {
	client    *ghostClient
	manifests map[manifest.Digest]manifest.Manifest
}

func (g *ghostGateway) FetchManifest(ctx context.Context, owner, pkg string, digest manifest.Digest) (manifest.Manifest, error) {
	m, ok := g.manifests[digest]
	if !ok {
		return manifest.Manifest{}, registry.ErrManifestNotFound
	}
	return m, nil
}

func (g *ghostGateway) PutManifest(ctx context.Context, owner, pkg, tag string, m manifest.Manifest) error {
	g.client.mu.Lock()
	defer g.client.mu.Unlock()
	for i := range g.client.versions {
		for j, t := range g.client.versions[i].Tags {
			if t == tag {
				g.client.versions[i].Tags = append(g.client.versions[i].Tags[:j], g.client.versions[i].Tags[j+1:]...)
				break
			}
		}
	}
	g.client.nextID++
	ghostDigest := manifest.Digest("sha256:ghost" + string(rune('0'+g.client.nextID)))
	g.client.versions = append(g.client.versions, pkgversion.Version{
		ID:       g.client.nextID,
		Name:     ghostDigest,
		Tags:     []string{tag},
		Manifest: m,
	})
	g.manifests[ghostDigest] = m
	return nil
}

func TestRun_DetachesTagUsingGhostManifestProtocol(t *testing.T) {
	t.Parallel()

	v1 := singleArchVersion(1, "sha256:aaaa", "v1")

	client := &ghostClient{versions: []pkgversion.Version{v1}, nextID: 100}
	gateway := &ghostGateway{client: client, manifests: map[manifest.Digest]manifest.Manifest{v1.Name: v1.Manifest}}

	zero := 0
	exec := &Executor{
		Gateway: gateway,
		Client:  client,
		Owner:   "acme",
		Package: "widget",
		Config:  selectionConfigKeepNTagged(zero),
	}

	report, err := exec.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"v1"}, report.TagsDeleted)
	assert.Contains(t, client.deleted, int32(101)) // the ghost version
	// With keep_n_tagged=0 nothing protects v1's own digest either, so the
	// version-deletion pass removes it right after its tag is detached.
	assert.Contains(t, client.deleted, int32(1))
}
