// Package registry implements the ghcr.io HTTP gateway the engine fetches
// manifests through and issues tag/version mutations against, reimplemented
// directly on net/http (rather than delegating to ORAS's transport) so the
// bearer-challenge handshake and retry policy can surface the engine's own
// typed errors.
package registry

import "errors"

var (
	// ErrManifestNotFound is returned uniformly for both a 404 and the
	// occasionally-observed 400 ghcr.io returns for a manifest absent from
	// the registry (stale pagination).
	ErrManifestNotFound = errors.New("registry: manifest not found")

	// ErrAuthChallengeInvalid is returned when a 401 response's
	// WWW-Authenticate header is missing or lacks realm/service/scope.
	ErrAuthChallengeInvalid = errors.New("registry: invalid auth challenge")

	// ErrAuthFailed is returned when the token endpoint responds without a
	// usable bearer token.
	ErrAuthFailed = errors.New("registry: authentication failed")

	// ErrRegistryTransport is returned after retry exhaustion on a network
	// error or 5xx response.
	ErrRegistryTransport = errors.New("registry: transport failure")
)
