// Package pkgversion decodes a GitHub Packages API version payload into a
// strictly-typed record. Fields outside that record, unknown ones included,
// are not retained.
package pkgversion

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
)

// ErrInvalidJSON is returned when a version payload is malformed or a
// required field has the wrong type.
var ErrInvalidJSON = errors.New("pkgversion: invalid JSON")

// Version is a single entry in a GitHub package repository. Name IS the
// digest (the wire field is literally the manifest digest); Tags live under
// metadata.container.tags.
type Version struct {
	ID             int32
	Name           manifest.Digest
	URL            string
	PackageHTMLURL string
	HTMLURL        string
	CreatedAt      string
	UpdatedAt      string
	PackageType    string
	Tags           []string
	Manifest       manifest.Manifest

	// Node state, populated by internal/forest during resolution. Per the
	// REDESIGN FLAGS in SPEC_FULL.md §9, the Node abstraction collapses onto
	// Version itself rather than existing as a separate wrapper type. parent
	// and children are unexported, so they change only through the methods
	// below (SetParent and AddChild, which tree.Link calls, and Reset),
	// matching the invariant that a version's place in the forest is only
	// ever changed by relationship resolution. Type is set by the forest
	// builder's classification.
	parent   *Version
	children []*Version
	Type     ArtifactType
}

// Parent returns v's parent in the forest, or nil if v is a root.
func (v *Version) Parent() *Version { return v.parent }

// SetParent implements tree.Node[*Version].
func (v *Version) SetParent(parent *Version) { v.parent = parent }

// Children returns v's children in discovery order.
func (v *Version) Children() []*Version { return v.children }

// AddChild implements tree.Node[*Version]; it is a no-op if child is already present.
func (v *Version) AddChild(child *Version) {
	for _, c := range v.children {
		if c == child {
			return
		}
	}
	v.children = append(v.children, child)
}

// Reset clears v's forest-derived state so the forest can be rebuilt from
// scratch over a (possibly reduced) version set, per §4.5.
func (v *Version) Reset() {
	v.parent = nil
	v.children = nil
	v.Type = TypeUnknown
}

// ArtifactType classifies a version once the forest has been built.
type ArtifactType int

const (
	TypeUnknown ArtifactType = iota
	TypeMultiArchImage
	TypeSingleArchImage
	TypeAttestation
)

func (t ArtifactType) String() string {
	switch t {
	case TypeMultiArchImage:
		return "multi-arch image"
	case TypeSingleArchImage:
		return "single-arch image"
	case TypeAttestation:
		return "attestation"
	default:
		return "unknown"
	}
}

type wireVersion struct {
	ID             json.Number     `json:"id"`
	Name           string          `json:"name"`
	URL            string          `json:"url"`
	PackageHTMLURL string          `json:"package_html_url"`
	HTMLURL        string          `json:"html_url"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
	Metadata       wireMetadata    `json:"metadata"`
	Manifest       json.RawMessage `json:"manifest"`
}

type wireMetadata struct {
	PackageType string        `json:"package_type"`
	Container   wireContainer `json:"container"`
}

type wireContainer struct {
	Tags *[]string `json:"tags"`
}

// Decode parses a GitHub Packages API version payload (the `manifest` field
// holding the raw OCI manifest JSON for that version).
func Decode(data []byte) (Version, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Version{}, ErrInvalidJSON
	}

	for _, key := range []string{"name", "url", "package_html_url", "html_url", "created_at", "updated_at"} {
		if !isStringField(raw, key) {
			return Version{}, ErrInvalidJSON
		}
	}

	// A quoted id would still decode into json.Number, so reject it here.
	if id, ok := raw["id"]; ok && len(id) > 0 && id[0] == '"' {
		return Version{}, ErrInvalidJSON
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var w wireVersion
	if err := dec.Decode(&w); err != nil {
		return Version{}, ErrInvalidJSON
	}

	id, err := toInt32(w.ID)
	if err != nil {
		return Version{}, ErrInvalidJSON
	}

	if w.Metadata.PackageType == "" {
		return Version{}, ErrInvalidJSON
	}
	if w.Metadata.Container.Tags == nil {
		return Version{}, ErrInvalidJSON
	}

	var m manifest.Manifest
	if len(w.Manifest) > 0 {
		m, err = manifest.Decode(w.Manifest)
		if err != nil {
			return Version{}, err
		}
	}

	return Version{
		ID:             id,
		Name:           manifest.Digest(w.Name),
		URL:            w.URL,
		PackageHTMLURL: w.PackageHTMLURL,
		HTMLURL:        w.HTMLURL,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
		PackageType:    w.Metadata.PackageType,
		Tags:           *w.Metadata.Container.Tags,
		Manifest:       m,
	}, nil
}

// toInt32 rejects any value that isn't a whole number representable as an
// int32, including floating-point numbers such as 1.5.
func toInt32(n json.Number) (int32, error) {
	if n == "" {
		return 0, ErrInvalidJSON
	}
	f, err := n.Float64()
	if err != nil {
		return 0, ErrInvalidJSON
	}
	if f != math.Trunc(f) {
		return 0, ErrInvalidJSON
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, ErrInvalidJSON
	}
	return int32(f), nil
}

func isStringField(raw map[string]json.RawMessage, key string) bool {
	v, ok := raw[key]
	if !ok {
		return false
	}
	var s string
	return json.Unmarshal(v, &s) == nil
}
