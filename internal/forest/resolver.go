package forest

import (
	"regexp"
	"strings"

	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/ghcr-tools/ghcr-prune/internal/tree"
)

// lookupFunc resolves a digest, stringified numeric id, or tag to its owning
// version, backed by the forest's KeyIndex. Every resolver pass is written
// against this single closure so the three passes never need to know how
// the index is built.
type lookupFunc func(key string) *pkgversion.Version

// resolveManifestChildren is Pass 1 (index→manifest): for every version with
// a non-empty Manifest.Manifests list, link each resolvable child under it.
// Grounded on internal/oras/discovery.go's discoverFromIndex, inverted to
// walk the already-ingested in-memory set (every manifest is fetched once
// during ingest) rather than making a live registry call per index.
func resolveManifestChildren(w map[manifest.Digest]*pkgversion.Version, lookup lookupFunc) error {
	for _, v := range w {
		for _, ref := range v.Manifest.Manifests {
			child := lookup(string(ref.Digest))
			if child == nil {
				continue // absent from the package repository: drop silently
			}
			if _, inSet := w[child.Name]; !inSet {
				continue
			}
			if err := tree.Link[*pkgversion.Version](v, child); err != nil {
				return ErrGraphInconsistency
			}
		}
	}
	return nil
}

// resolveReferrerSubject is Pass 2 (OCI 1.1 subject): for every version
// carrying a subject pointer, link it as a child of the subject. New
// relative to the teacher, whose discoverChildren never reads
// manifest.subject; mirrors Pass 1's lookup-and-link shape with the roles
// reversed, since OCI 1.1 referrers point child→parent.
func resolveReferrerSubject(w map[manifest.Digest]*pkgversion.Version, lookup lookupFunc) error {
	for _, v := range w {
		if v.Manifest.Subject == nil {
			continue
		}
		subject := lookup(string(v.Manifest.Subject.Digest))
		if subject == nil {
			continue
		}
		if _, inSet := w[subject.Name]; !inSet {
			continue
		}
		if err := tree.Link[*pkgversion.Version](subject, v); err != nil {
			return ErrGraphInconsistency
		}
	}
	return nil
}

// cosignTagPattern recognizes the OCI 1.0 fallback referrer schema: a tag
// that is the subject's digest with the first "-" swapped back to ":".
var cosignTagPattern = regexp.MustCompile(`^sha256-[a-f0-9]{64}$`)

// IsAttestationTag reports whether t looks like an OCI 1.0 fallback
// referrer tag (sha256-<64 hex>), used by classification's tag-pattern
// tier. Pass 3 does not call it: it transforms every tag whatever its shape.
func IsAttestationTag(t string) bool {
	return cosignTagPattern.MatchString(t)
}

// subjectDigestFromTag transforms a tag by replacing the first "-" with
// ":" so "sha256-<hex>" becomes "sha256:<hex>", per §4.4 Pass 3. Grounded in
// cmd/graph_builder.go's ExtractParentDigestFromCosignTag, generalized from
// that function's ".sig"/".att" suffix matching to the spec's exact
// first-dash-to-colon substitution rule.
func subjectDigestFromTag(tag string) string {
	i := strings.Index(tag, "-")
	if i < 0 {
		return tag
	}
	return tag[:i] + ":" + tag[i+1:]
}

// resolveReferrerTag is Pass 3 (OCI 1.0 fallback tag schema): for every tag
// on every version, transform it and link the version under whatever owns
// the transformed digest.
func resolveReferrerTag(w map[manifest.Digest]*pkgversion.Version, lookup lookupFunc) error {
	for _, v := range w {
		for _, t := range v.Tags {
			key := subjectDigestFromTag(t)
			subject := lookup(key)
			if subject == nil || subject == v {
				continue // self-links are skipped silently
			}
			if _, inSet := w[subject.Name]; !inSet {
				continue
			}
			if err := tree.Link[*pkgversion.Version](subject, v); err != nil {
				return ErrGraphInconsistency
			}
		}
	}
	return nil
}

// classify applies the priority-ordered artifact-type classification of
// §4.4 to v, once all three resolver passes have run. Grounded in style on
// internal/oras/resolver.go's isAttestation/isSignature sniffing, collapsed
// to the spec's binary attestation classification (see SPEC_FULL.md §4.4
// for why the teacher's richer sbom/provenance/vex sub-roles are preserved
// separately as selection.Role rather than folded into ArtifactType).
func classify(v *pkgversion.Version) pkgversion.ArtifactType {
	switch {
	case v.Manifest.HasAttestationLayers():
		return pkgversion.TypeAttestation
	case v.Manifest.Subject != nil:
		return pkgversion.TypeAttestation
	case hasAttestationTag(v.Tags):
		return pkgversion.TypeAttestation
	case len(v.Manifest.Layers) > 0:
		return pkgversion.TypeSingleArchImage
	case len(v.Manifest.Manifests) > 0:
		return pkgversion.TypeMultiArchImage
	default:
		return pkgversion.TypeUnknown
	}
}

func hasAttestationTag(tags []string) bool {
	for _, t := range tags {
		if IsAttestationTag(t) {
			return true
		}
	}
	return false
}
