package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
)

// Gateway is the subset of registry operations the engine consumes: fetch a
// manifest by digest, and push a rewritten manifest under a tag (the
// tag-deletion ghost-manifest protocol, §4.8).
type Gateway interface {
	FetchManifest(ctx context.Context, owner, pkg string, digest manifest.Digest) (manifest.Manifest, error)
	PutManifest(ctx context.Context, owner, pkg, tag string, m manifest.Manifest) error
}

// acceptedMediaTypes lists every media type this engine understands, sent
// verbatim as the Accept header so ghcr.io returns whichever variant the
// manifest actually is rather than transcoding.
var acceptedMediaTypes = []string{
	manifest.MediaTypeOCIManifest,
	manifest.MediaTypeOCIIndex,
	manifest.MediaTypeDockerManifest,
	manifest.MediaTypeDockerManifestList,
}

const maxRetries = 3

// HTTPGateway is the ghcr.io implementation of Gateway, built directly on
// net/http rather than delegating to ORAS's remote.Repository, so the
// bearer-challenge/retry control §4.6 requires can surface this package's
// own typed errors instead of being folded into oras-go's error values.
// Grounded in internal/oras/resolver.go's use of remote.Repository.Fetch,
// reimplemented at the transport layer.
type HTTPGateway struct {
	client *http.Client
	token  string // the configured GitHub token, used as the Basic password

	mu         sync.Mutex
	cachedAuth string // cached bearer token, set after the first 401 challenge
}

// NewHTTPGateway constructs a gateway against ghcr.io, using httpClient for
// every request (tests substitute an httptest.Server-backed client; nil
// defaults to http.DefaultClient).
func NewHTTPGateway(httpClient *http.Client, token string) *HTTPGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPGateway{client: httpClient, token: token}
}

func manifestURL(base, owner, pkg, ref string) string {
	return fmt.Sprintf("%s/v2/%s/%s/manifests/%s", base, owner, pkg, ref)
}

// baseURL is a package-level var, not a const, purely so tests can point
// the gateway at an httptest.Server instead of the real registry.
var baseURL = "https://ghcr.io"

// FetchManifest issues GET /v2/{owner}/{package}/manifests/{digest}. A 401
// triggers one token re-authentication attempt; a 404 or 400 both surface
// as ErrManifestNotFound (§9 Open Questions); a network error or 5xx
// response is retried up to maxRetries times before surfacing
// ErrRegistryTransport; any other status is returned as an error.
func (g *HTTPGateway) FetchManifest(ctx context.Context, owner, pkg string, digest manifest.Digest) (manifest.Manifest, error) {
	url := manifestURL(baseURL, owner, pkg, string(digest))

	body, _, err := g.doWithAuth(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return manifest.Manifest{}, err
	}
	return manifest.DecodeWithFallback(body)
}

// PutManifest issues PUT /v2/{owner}/{package}/manifests/{tag}, used
// exclusively by the tag-deletion ghost-manifest protocol (§4.8).
func (g *HTTPGateway) PutManifest(ctx context.Context, owner, pkg, tag string, m manifest.Manifest) error {
	payload, err := m.MarshalJSON()
	if err != nil {
		return fmt.Errorf("registry: marshaling manifest for put: %w", err)
	}
	url := manifestURL(baseURL, owner, pkg, tag)
	_, _, err = g.doWithAuth(ctx, http.MethodPut, url, payload, m.MediaType)
	return err
}

// doWithAuth performs req, handling the bearer-challenge handshake on a 401
// and retrying transient failures up to maxRetries times. It returns the
// response body on success.
func (g *HTTPGateway) doWithAuth(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, int, error) {
	resp, respBody, err := g.attempt(ctx, method, url, body, contentType, g.currentAuth())
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		if authErr := g.reauthenticate(ctx, resp); authErr != nil {
			return nil, 0, authErr
		}
		resp, respBody, err = g.attempt(ctx, method, url, body, contentType, g.currentAuth())
	}

	for retry := 0; retry < maxRetries && (errors.Is(err, ErrRegistryTransport) || (err == nil && isTransientStatus(resp.StatusCode))); retry++ {
		resp, respBody, err = g.attempt(ctx, method, url, body, contentType, g.currentAuth())
	}
	if err != nil {
		return nil, 0, err
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusAccepted:
		return respBody, resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return nil, resp.StatusCode, ErrManifestNotFound
	case isTransientStatus(resp.StatusCode):
		return nil, resp.StatusCode, ErrRegistryTransport
	default:
		return nil, resp.StatusCode, fmt.Errorf("registry: unexpected status %d", resp.StatusCode)
	}
}

func isTransientStatus(status int) bool {
	return status >= 500
}

// attempt performs exactly one HTTP round trip.
func (g *HTTPGateway) attempt(ctx context.Context, method, url string, body []byte, contentType, bearer string) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("registry: building request: %w", err)
	}
	req.Header.Set("Accept", joinAccept())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRegistryTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: reading response body: %v", ErrRegistryTransport, err)
	}
	return resp, respBody, nil
}

// reauthenticate parses resp's WWW-Authenticate challenge and exchanges it
// for a bearer token, caching it for subsequent requests. Guarded by a
// plain mutex rather than sync.Once because a 401 can legitimately recur
// (an expired cached token) and must be allowed to re-authenticate again.
func (g *HTTPGateway) reauthenticate(ctx context.Context, resp *http.Response) error {
	header := resp.Header.Get("WWW-Authenticate")
	if header == "" {
		return ErrAuthChallengeInvalid
	}
	c, err := parseChallenge(header)
	if err != nil {
		return err
	}
	token, err := exchangeToken(ctx, g.client, c, g.token)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.cachedAuth = token
	g.mu.Unlock()
	return nil
}

func (g *HTTPGateway) currentAuth() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cachedAuth
}

func joinAccept() string {
	out := acceptedMediaTypes[0]
	for _, mt := range acceptedMediaTypes[1:] {
		out += ", " + mt
	}
	return out
}
