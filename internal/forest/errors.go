// Package forest composes the three relationship-resolution passes into a
// typed graph of package versions, grounded on the teacher's
// internal/discovery.NewVersionCacheFromSlice (by-digest/by-ID indexing) and
// internal/discover.discoverChildren (parent/child edge discovery), but
// rebuilt around the spec's three distinct linkage mechanisms instead of the
// teacher's single ORAS-backed child-discovery pass.
package forest

import "errors"

// ErrGraphInconsistency is returned when a version would receive two
// different parents across the three resolver passes. In a well-formed
// repository this cannot happen because the three mechanisms are mutually
// exclusive in practice; if it does, the forest refuses to guess.
var ErrGraphInconsistency = errors.New("forest: version would receive two different parents")
