package selection

import (
	"sort"

	"github.com/ghcr-tools/ghcr-prune/internal/forest"
	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/ghcr-tools/ghcr-prune/internal/tree"
)

// Result is the deterministic plan Plan produces: the tags to detach and
// the versions to delete, per §4.7's final plan definition.
type Result struct {
	TagsDelete     []string
	VersionsDelete []*pkgversion.Version
}

// digestSet is a set of versions keyed by digest, used for the closure
// unions/subtractions the set algebra requires.
type digestSet map[manifest.Digest]*pkgversion.Version

func newDigestSet(versions ...*pkgversion.Version) digestSet {
	s := make(digestSet, len(versions))
	for _, v := range versions {
		if v != nil {
			s[v.Name] = v
		}
	}
	return s
}

func (s digestSet) union(other digestSet) digestSet {
	out := make(digestSet, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (s digestSet) sub(other digestSet) digestSet {
	out := make(digestSet, len(s))
	for k, v := range s {
		if _, excluded := other[k]; !excluded {
			out[k] = v
		}
	}
	return out
}

func (s digestSet) has(v *pkgversion.Version) bool {
	_, ok := s[v.Name]
	return ok
}

func (s digestSet) values() []*pkgversion.Version {
	out := make([]*pkgversion.Version, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	return out
}

// closure returns roots together with every proper descendant transitively
// reachable through the child relation, per §4.7's "traverses child edges
// only" rule. Grounded on the teacher's internal/discover/delete_helpers.go
// FindImageByDigest visited-guarded walk, rebuilt over tree.Visit instead of
// that function's string-keyed adjacency map.
func closure(roots []*pkgversion.Version) digestSet {
	out := make(digestSet)
	tree.Visit[*pkgversion.Version](roots, forest.Children, func(v *pkgversion.Version) {
		out[v.Name] = v
	})
	return out
}

// allTags collects every tag carried by any non-attestation version in the
// forest — the engine's X_tag. Attestation-owned tags are excluded: they
// are the OCI 1.0 referrer-tag markers Pass 3 consumed to establish
// linkage (§4.4), structural plumbing rather than operator-facing labels.
// Without this exclusion, an attestation's own referrer tag would fall
// into C_tag by default (no keep_n_tagged configured ⇒ "keep everything
// untouched"), and the integrity rule in the final subtraction would then
// protect the attestation from its root's own deletion — exactly
// contradicting §8 scenario 5, where the attestation must be deleted
// alongside the root that carries it.
func allTags(versions []*pkgversion.Version) []string {
	var tags []string
	for _, v := range versions {
		if v.Type == pkgversion.TypeAttestation {
			continue
		}
		tags = append(tags, v.Tags...)
	}
	return tags
}

func matchTags(tags []string, re regexpMatcher) []string {
	if re == nil {
		return nil
	}
	var out []string
	for _, t := range tags {
		if re.MatchString(t) {
			out = append(out, t)
		}
	}
	return out
}

// sortByOwnerUpdatedAtDesc stable-sorts tags by the updated_at of the
// version that owns each tag, most recent first. Unresolvable tags (should
// not occur, since every tag in X_tag came from some version) sort as if
// owned by a version with epoch-zero updated_at.
func sortByOwnerUpdatedAtDesc(tags []string, f *forest.Forest) []string {
	out := append([]string(nil), tags...)
	ownerTime := func(t string) int64 {
		v := f.ByKey(t)
		if v == nil {
			return epochZero.Unix()
		}
		return parseUpdatedAt(v.UpdatedAt).Unix()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ownerTime(out[i]) > ownerTime(out[j])
	})
	return out
}

func sortRootsByUpdatedAtDesc(roots []*pkgversion.Version) []*pkgversion.Version {
	out := append([]*pkgversion.Version(nil), roots...)
	sort.SliceStable(out, func(i, j int) bool {
		return parseUpdatedAt(out[i].UpdatedAt).After(parseUpdatedAt(out[j].UpdatedAt))
	})
	return out
}

func setDiffStrings(a, b []string) []string {
	excluded := make(map[string]bool, len(b))
	for _, t := range b {
		excluded[t] = true
	}
	var out []string
	for _, t := range a {
		if !excluded[t] {
			out = append(out, t)
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, t := range append(append([]string(nil), a...), b...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func versionsOf(tags []string, f *forest.Forest) []*pkgversion.Version {
	var out []*pkgversion.Version
	for _, t := range tags {
		if v := f.ByKey(t); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// regexpMatcher is the minimal surface Plan needs from *regexp.Regexp,
// expressed as an interface purely so nil-Config fields (meaning "unset")
// and a real compiled pattern share the same calling convention.
type regexpMatcher interface {
	MatchString(string) bool
}

// Plan computes the deterministic tag/version deletion plan over f given
// cfg, implementing exactly the set algebra of §4.7: unchanged in meaning
// from the distilled spec, reimplemented over Go's typed Forest/Config
// rather than pseudo-code set notation.
func Plan(f *forest.Forest, cfg Config) (Result, error) {
	xTag := allTags(f.All)

	var aTag, bTag []string
	if cfg.IncludeTags != nil {
		aTag = matchTags(xTag, cfg.IncludeTags)
	}
	if cfg.ExcludeTags != nil {
		bTag = matchTags(xTag, cfg.ExcludeTags)
	}

	tagsRest := setDiffStrings(setDiffStrings(xTag, aTag), bTag)
	tagsRest = sortByOwnerUpdatedAtDesc(tagsRest, f)

	var cTag, dTag []string
	if cfg.KeepNTagged != nil {
		n := *cfg.KeepNTagged
		if n < 0 {
			n = 0
		}
		if n > len(tagsRest) {
			n = len(tagsRest)
		}
		cTag = tagsRest[:n]
		dTag = tagsRest[n:]
	} else {
		cTag = tagsRest
	}

	aDig := closure(versionsOf(aTag, f))
	bDig := closure(versionsOf(bTag, f))
	cDig := closure(versionsOf(cTag, f))
	dDig := closure(versionsOf(dTag, f))

	keptByTagRules := aDig.union(bDig).union(cDig).union(dDig)

	var imagesRest []*pkgversion.Version
	for _, r := range f.Roots {
		if keptByTagRules.has(r) {
			continue
		}
		if r.Type == pkgversion.TypeAttestation {
			continue
		}
		imagesRest = append(imagesRest, r)
	}
	imagesRest = sortRootsByUpdatedAtDesc(imagesRest)

	var eDig digestSet
	var fDig digestSet
	if cfg.KeepNUntagged != nil {
		n := *cfg.KeepNUntagged
		if n < 0 {
			n = 0
		}
		if n > len(imagesRest) {
			n = len(imagesRest)
		}
		eDig = closure(imagesRest[:n])
		fDig = closure(imagesRest[n:])
	} else {
		eDig = closure(imagesRest)
		fDig = newDigestSet()
	}

	tagsDelete := unionStrings(setDiffStrings(aTag, bTag), dTag)

	deleteUnion := aDig.union(dDig).union(fDig)
	keepUnion := bDig.union(cDig).union(eDig)
	versionsDelete := deleteUnion.sub(keepUnion).values()

	sort.SliceStable(versionsDelete, func(i, j int) bool {
		return versionsDelete[i].ID < versionsDelete[j].ID
	})
	sort.Strings(tagsDelete)

	return Result{TagsDelete: tagsDelete, VersionsDelete: versionsDelete}, nil
}
