// Package ghapi wraps the GitHub Packages REST API calls the engine needs
// to ingest a package's versions and delete them, adapted line-for-line in
// structure from the teacher's internal/gh/client.go.
package ghapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/ghcr-tools/ghcr-prune/internal/logging"
	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/google/go-github/v58/github"
)

// Client wraps the GitHub API client.
type Client struct {
	client *github.Client
}

// VersionLister lists a package's versions. Satisfied by *Client; named so
// internal/executor can depend on the interface rather than the concrete
// type, mirroring the teacher's packageVersionLister.
type VersionLister interface {
	ListVersions(ctx context.Context, owner, ownerType, pkg string) ([]pkgversion.Version, error)
}

// VersionDeleter deletes a single package version by id. Satisfied by
// *Client; mirrors the teacher's packageDeleter.
type VersionDeleter interface {
	DeleteVersion(ctx context.Context, owner, ownerType, pkg string, id int32) error
}

var _ VersionLister = (*Client)(nil)
var _ VersionDeleter = (*Client)(nil)

// GetToken retrieves the GitHub token from the GITHUB_TOKEN environment
// variable, used by the retained exploratory commands; the run command
// sources its token from internal/config.RunConfig instead.
func GetToken() (string, error) {
	token, exists := os.LookupEnv("GITHUB_TOKEN")
	if !exists {
		return "", fmt.Errorf("GITHUB_TOKEN environment variable not set")
	}
	if token == "" {
		return "", fmt.Errorf("GITHUB_TOKEN environment variable is empty")
	}
	return token, nil
}

// NewClient creates a new GitHub API client authenticated with token.
func NewClient(token string) (*Client, error) {
	return NewClientWithContext(context.Background(), token)
}

// NewClientWithContext creates a new GitHub API client, wiring in the
// logging transport when logging is enabled on ctx (internal/logging's
// API-call transport logger, kept from the teacher for --log-api-calls
// style diagnostics).
func NewClientWithContext(ctx context.Context, token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	var httpClient *http.Client
	if logging.IsLoggingEnabled(ctx) {
		httpClient = &http.Client{
			Transport: logging.NewLoggingRoundTripper(http.DefaultTransport, os.Stderr),
		}
	}

	client := github.NewClient(httpClient).WithAuthToken(token)
	return &Client{client: client}, nil
}

// GetOwnerType determines whether owner is a user or organization,
// required before the first list call per §6.
func (c *Client) GetOwnerType(ctx context.Context, owner string) (string, error) {
	if owner == "" {
		return "", fmt.Errorf("owner cannot be empty")
	}

	user, _, err := c.client.Users.Get(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("failed to get owner info: %w", err)
	}

	if user.Type != nil && *user.Type == "Organization" {
		return "org", nil
	}
	return "user", nil
}

// ListVersions lists every version of pkg under owner, paginated exactly as
// the teacher's ListPackageVersions (PerPage 100, State active,
// PackageType container), constructing pkgversion.Version records directly
// from the SDK's typed fields rather than decoding JSON — go-github doesn't
// expose the raw response body pkgversion.Decode needs, so that decoder
// stays the fixture/test-facing path while this is the live ingest path.
// Manifest is left at its zero value; the caller (internal/executor) fills
// it in via registry.Gateway.FetchManifest once every version is listed.
func (c *Client) ListVersions(ctx context.Context, owner, ownerType, pkg string) ([]pkgversion.Version, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner cannot be empty")
	}
	if ownerType != "org" && ownerType != "user" {
		return nil, fmt.Errorf("owner type must be 'org' or 'user', got %q", ownerType)
	}
	if pkg == "" {
		return nil, fmt.Errorf("package name cannot be empty")
	}

	opts := &github.PackageListOptions{
		PackageType: github.String("container"),
		State:       github.String("active"),
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var out []pkgversion.Version
	for {
		var versions []*github.PackageVersion
		var resp *github.Response
		var err error

		if ownerType == "org" {
			versions, resp, err = c.client.Organizations.PackageGetAllVersions(ctx, owner, "container", pkg, opts)
		} else {
			versions, resp, err = c.client.Users.PackageGetAllVersions(ctx, owner, "container", pkg, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list package versions: %w", err)
		}

		for _, ver := range versions {
			out = append(out, fromSDKVersion(ver))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func fromSDKVersion(ver *github.PackageVersion) pkgversion.Version {
	v := pkgversion.Version{}
	if ver.ID != nil {
		v.ID = int32(*ver.ID)
	}
	if ver.Name != nil {
		v.Name = manifest.Digest(*ver.Name)
	}
	if ver.URL != nil {
		v.URL = *ver.URL
	}
	if ver.PackageHTMLURL != nil {
		v.PackageHTMLURL = *ver.PackageHTMLURL
	}
	if ver.HTMLURL != nil {
		v.HTMLURL = *ver.HTMLURL
	}
	if ver.CreatedAt != nil {
		v.CreatedAt = ver.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if ver.UpdatedAt != nil {
		v.UpdatedAt = ver.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	v.PackageType = "container"
	v.Tags = []string{}
	if ver.Metadata != nil && ver.Metadata.Container != nil {
		v.Tags = ver.Metadata.Container.Tags
	}
	return v
}

// DeleteVersion deletes a single package version by id, adapted from the
// teacher's DeletePackageVersion.
func (c *Client) DeleteVersion(ctx context.Context, owner, ownerType, pkg string, id int32) error {
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}
	if ownerType != "org" && ownerType != "user" {
		return fmt.Errorf("owner type must be 'org' or 'user', got %q", ownerType)
	}
	if pkg == "" {
		return fmt.Errorf("package name cannot be empty")
	}
	if id <= 0 {
		return fmt.Errorf("version ID must be positive, got %d", id)
	}

	var err error
	if ownerType == "org" {
		_, err = c.client.Organizations.PackageDeleteVersion(ctx, owner, "container", pkg, int64(id))
	} else {
		_, err = c.client.Users.PackageDeleteVersion(ctx, owner, "container", pkg, int64(id))
	}
	if err != nil {
		return fmt.Errorf("failed to delete version: %w", err)
	}
	return nil
}

// IsLastTaggedVersionError reports whether err is ghcr.io's refusal to
// delete the last tagged version of a package.
func IsLastTaggedVersionError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "cannot delete the last tagged version")
}

// ListPackages lists every container package owned by owner, retained from
// the teacher for the `list` exploratory command (§9 supplemented
// features).
func (c *Client) ListPackages(ctx context.Context, owner, ownerType string) ([]string, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner cannot be empty")
	}
	if ownerType != "org" && ownerType != "user" {
		return nil, fmt.Errorf("owner type must be 'org' or 'user', got %q", ownerType)
	}

	opts := &github.PackageListOptions{
		PackageType: github.String("container"),
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var names []string
	for {
		var packages []*github.Package
		var resp *github.Response
		var err error

		if ownerType == "org" {
			packages, resp, err = c.client.Organizations.ListPackages(ctx, owner, opts)
		} else {
			packages, resp, err = c.client.Users.ListPackages(ctx, owner, opts)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list packages: %w", err)
		}

		for _, pkg := range packages {
			if pkg.Name != nil {
				names = append(names, *pkg.Name)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}
