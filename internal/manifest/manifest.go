package manifest

import (
	"encoding/json"
	"errors"
	"sort"
)

// ErrInvalidJSON is returned when a manifest payload cannot be parsed, is
// missing a required field, or declares a mediaType outside the closed set
// this package understands.
var ErrInvalidJSON = errors.New("manifest: invalid JSON")

// The four media types this engine understands. Anything else is rejected.
const (
	MediaTypeOCIManifest       = "application/vnd.oci.image.manifest.v1+json"
	MediaTypeOCIIndex          = "application/vnd.oci.image.index.v1+json"
	MediaTypeDockerManifest    = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
)

var knownMediaTypes = map[string]bool{
	MediaTypeOCIManifest:        true,
	MediaTypeOCIIndex:           true,
	MediaTypeDockerManifest:     true,
	MediaTypeDockerManifestList: true,
}

// IsMultiArch reports whether mediaType identifies an index/manifest-list
// variant (one that points at per-platform children rather than layers).
func IsMultiArch(mediaType string) bool {
	return mediaType == MediaTypeOCIIndex || mediaType == MediaTypeDockerManifestList
}

// ManifestRef is a pointer to another manifest, as found in a "layers",
// "manifests", or "subject" field. Fields beyond mediaType/digest/size are
// preserved verbatim so a decode-then-encode round trip never drops data.
type ManifestRef struct {
	MediaType string
	Digest    Digest
	Extra     map[string]json.RawMessage
}

func (r ManifestRef) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(map[string]interface{}{
		"mediaType": r.MediaType,
		"digest":    r.Digest,
	}, r.Extra)
}

func (r *ManifestRef) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if mt, ok := raw["mediaType"]; ok {
		if err := json.Unmarshal(mt, &r.MediaType); err != nil {
			return err
		}
		delete(raw, "mediaType")
	}
	if d, ok := raw["digest"]; ok {
		var digest string
		if err := json.Unmarshal(d, &digest); err != nil {
			return err
		}
		r.Digest = Digest(digest)
		delete(raw, "digest")
	}
	r.Extra = raw
	return nil
}

// Manifest is the tagged variant described by §9's REDESIGN FLAGS: a single
// struct keyed by MediaType rather than a class hierarchy. All four media
// type variants share the same optional layers/manifests/subject fields.
type Manifest struct {
	MediaType string
	Layers    []ManifestRef
	Manifests []ManifestRef
	Subject   *ManifestRef
	Extra     map[string]json.RawMessage
}

// HasAttestationLayers reports whether every layer is an in-toto statement,
// the first tier of the attestation classification in §4.4.
func (m Manifest) HasAttestationLayers() bool {
	if len(m.Layers) == 0 {
		return false
	}
	for _, l := range m.Layers {
		if l.MediaType != "application/vnd.in-toto+json" {
			return false
		}
	}
	return true
}

// Decode parses a manifest payload. A missing mediaType is always an error;
// use DecodeWithFallback for the registry gateway's lenient path (§9 Open
// Questions).
func Decode(data []byte) (Manifest, error) {
	return decode(data, false)
}

// DecodeWithFallback behaves like Decode except a missing mediaType is
// treated as oci.image.index.v1+json, matching the registry's observed
// behavior when it omits Content-Type-driven disambiguation. Only the
// registry gateway's fetch path should use this; general decoding (tests,
// fixtures, the GitHub Packages ingest path) uses Decode.
func DecodeWithFallback(data []byte) (Manifest, error) {
	return decode(data, true)
}

func decode(data []byte, fallbackToIndex bool) (Manifest, error) {
	if len(data) == 0 {
		return Manifest{}, ErrInvalidJSON
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Manifest{}, ErrInvalidJSON
	}

	mt, ok := raw["mediaType"]
	var mediaType string
	if ok {
		if err := json.Unmarshal(mt, &mediaType); err != nil {
			return Manifest{}, ErrInvalidJSON
		}
	} else if fallbackToIndex {
		mediaType = MediaTypeOCIIndex
	} else {
		return Manifest{}, ErrInvalidJSON
	}

	if !knownMediaTypes[mediaType] {
		return Manifest{}, ErrInvalidJSON
	}

	m := Manifest{MediaType: mediaType}
	delete(raw, "mediaType")

	if layersRaw, ok := raw["layers"]; ok {
		if err := json.Unmarshal(layersRaw, &m.Layers); err != nil {
			return Manifest{}, ErrInvalidJSON
		}
		delete(raw, "layers")
	}
	if manifestsRaw, ok := raw["manifests"]; ok {
		if err := json.Unmarshal(manifestsRaw, &m.Manifests); err != nil {
			return Manifest{}, ErrInvalidJSON
		}
		delete(raw, "manifests")
	}
	if subjectRaw, ok := raw["subject"]; ok {
		var subj ManifestRef
		if err := json.Unmarshal(subjectRaw, &subj); err != nil {
			return Manifest{}, ErrInvalidJSON
		}
		m.Subject = &subj
		delete(raw, "subject")
	}

	m.Extra = raw
	return m, nil
}

// MarshalJSON re-serializes the manifest, merging the typed fields with
// whatever unknown fields were preserved at decode time.
func (m Manifest) MarshalJSON() ([]byte, error) {
	known := map[string]interface{}{"mediaType": m.MediaType}
	if len(m.Layers) > 0 {
		known["layers"] = m.Layers
	}
	if len(m.Manifests) > 0 {
		known["manifests"] = m.Manifests
	}
	if m.Subject != nil {
		known["subject"] = m.Subject
	}
	return marshalWithExtra(known, m.Extra)
}

// marshalWithExtra merges known fields (marshaled first, in map-iteration
// order is not guaranteed by encoding/json so we build a single map) with
// extra passthrough fields and marshals the result as one JSON object.
func marshalWithExtra(known map[string]interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(known)+len(extra))
	keys := make([]string, 0, len(known))
	for k, v := range known {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = data
		keys = append(keys, k)
	}
	for k, v := range extra {
		if _, exists := out[k]; exists {
			continue
		}
		out[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, out[k]...)
	}
	buf = append(buf, '}')
	return buf, nil
}
