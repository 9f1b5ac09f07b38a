package selection

import (
	"encoding/json"
	"strings"

	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
)

// Role is an optional, finer-grained hint surfaced alongside an attestation
// version's ArtifactType, supplementing the spec's binary classification
// with the teacher's richer sub-role detection — useful to an operator
// reading a dry-run plan, never consulted by the selection algebra itself.
type Role int

const (
	RoleNone Role = iota
	RoleSBOM
	RoleProvenance
	RoleSignature
	RoleUnknownAttestation
)

func (r Role) String() string {
	switch r {
	case RoleSBOM:
		return "sbom"
	case RoleProvenance:
		return "provenance"
	case RoleSignature:
		return "signature"
	case RoleUnknownAttestation:
		return "unknown-attestation"
	default:
		return ""
	}
}

const annotationPredicateType = "in-toto.io/predicate-type"

// DetectRole inspects m's layer media types and in-toto predicate-type
// annotations for the substrings the teacher's determineAttestationTypesFromManifest
// looks for. It works entirely off the manifest already ingested (no extra
// blob fetch, unlike the teacher, which also opportunistically fetches the
// config blob when no layer annotation resolves a type) — a deliberate
// scope reduction, since the config-blob fallback requires a registry round
// trip the forest builder has no access to.
func DetectRole(m manifest.Manifest) Role {
	if strings.Contains(m.MediaType, "cosign") || strings.Contains(m.MediaType, "sigstore") {
		return RoleSignature
	}
	for _, l := range m.Layers {
		if role := roleFromMediaType(l.MediaType); role != RoleNone {
			return role
		}
		if role := roleFromAnnotations(l.Extra); role != RoleNone {
			return role
		}
	}
	if m.HasAttestationLayers() {
		return RoleUnknownAttestation
	}
	return RoleNone
}

func roleFromMediaType(mediaType string) Role {
	switch {
	case strings.Contains(mediaType, "spdx") || strings.Contains(mediaType, "cyclonedx"):
		return RoleSBOM
	case strings.Contains(mediaType, "slsa") || strings.Contains(mediaType, "provenance"):
		return RoleProvenance
	default:
		return RoleNone
	}
}

func roleFromAnnotations(extra map[string]json.RawMessage) Role {
	raw, ok := extra["annotations"]
	if !ok {
		return RoleNone
	}
	var annotations map[string]string
	if err := json.Unmarshal(raw, &annotations); err != nil {
		return RoleNone
	}
	predType, ok := annotations[annotationPredicateType]
	if !ok {
		return RoleNone
	}
	return roleFromMediaType(predType)
}
