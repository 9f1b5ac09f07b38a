// Package manifest decodes raw OCI/Docker manifest payloads into a tagged
// variant discriminated by mediaType, preserving any fields it doesn't know
// about so a round trip never loses data.
package manifest

import (
	"regexp"

	"github.com/opencontainers/go-digest"
)

// Digest is a content-addressed identifier of the form "sha256:<64 hex chars>".
// It is a distinct type from tag strings so the two are never accidentally
// mixed up when resolving references.
type Digest string

// loosePattern accepts the spec's documented "SHOULD match" shape, which is
// looser than go-digest's own algorithm-aware Validate (it doesn't require
// exactly 64 hex characters). Decoders surface non-conforming digests
// verbatim; the registry gateway is the thing that will ultimately fail to
// resolve them.
var loosePattern = regexp.MustCompile(`^sha256:[a-f0-9]+$`)

// Valid reports whether d looks like a well-formed sha256 digest. It first
// tries go-digest's own parser (which also validates hex length against the
// algorithm), falling back to the spec's looser pattern so a digest with an
// unusual but well-formed hex length is still accepted rather than rejected
// outright, matching §4.2's "MAY accept non-conforming digests" contract.
func (d Digest) Valid() bool {
	if dg := digest.Digest(d); dg.Validate() == nil {
		return true
	}
	return loosePattern.MatchString(string(d))
}

func (d Digest) String() string {
	return string(d)
}
