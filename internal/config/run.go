package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidPattern is a hard validation error for a malformed include-tags
// or exclude-tags regex, surfaced before any network call. Diverging
// intentionally from the teacher's internal/filter/versions.go convention of
// silently returning an empty match set on compile failure: a deletion tool
// must never treat "bad regex" as "match nothing".
var ErrInvalidPattern = errors.New("config: invalid tag pattern")

// RunConfig is the run command's input, loaded from GitHub Actions-style
// INPUT_* environment variables (or bare env vars, for local invocation)
// via viper.AutomaticEnv(), the same viper-backed approach as Config, rebound
// from the teacher's interactive flag/config-file model to the Action's
// env-var contract.
type RunConfig struct {
	Token         string
	Owner         string
	OwnerType     string
	Repository    string
	Package       string
	IncludeTags   *regexp.Regexp
	ExcludeTags   *regexp.Regexp
	KeepNTagged   *int
	KeepNUntagged *int
	DryRun        bool
	LogLevel      string
}

// LoadRunConfig reads the run command's configuration from the environment.
// token is required; a missing or empty value is a hard error since the
// executor cannot authenticate without one.
func LoadRunConfig() (RunConfig, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log-level", "warn")

	token := firstNonEmpty(v.GetString("input_token"), v.GetString("github_token"))
	if token == "" {
		return RunConfig{}, fmt.Errorf("config: token is required (INPUT_TOKEN or GITHUB_TOKEN)")
	}

	owner := firstNonEmpty(v.GetString("input_owner"), v.GetString("github_repository_owner"))
	repository := firstNonEmpty(v.GetString("input_repository"), v.GetString("github_repository"))
	pkg := v.GetString("input_package")
	if pkg == "" {
		pkg = packageFromRepository(repository)
	}

	include, err := compileOptionalPattern(v.GetString("input_include_tags"))
	if err != nil {
		return RunConfig{}, err
	}
	exclude, err := compileOptionalPattern(v.GetString("input_exclude_tags"))
	if err != nil {
		return RunConfig{}, err
	}

	keepNTagged, err := optionalNonNegativeInt(v, "input_keep_n_tagged")
	if err != nil {
		return RunConfig{}, err
	}
	keepNUntagged, err := optionalNonNegativeInt(v, "input_keep_n_untagged")
	if err != nil {
		return RunConfig{}, err
	}

	logLevel := v.GetString("input_log_level")
	if logLevel == "" {
		logLevel = v.GetString("log-level")
	}

	return RunConfig{
		Token:         token,
		Owner:         owner,
		Repository:    repository,
		Package:       pkg,
		IncludeTags:   include,
		ExcludeTags:   exclude,
		KeepNTagged:   keepNTagged,
		KeepNUntagged: keepNUntagged,
		DryRun:        v.GetString("input_dry_run") != "",
		LogLevel:      logLevel,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// packageFromRepository derives a default package name from a
// "owner/repository" style GITHUB_REPOSITORY value, matching the repository's
// short name the way GitHub's own container-image publishing guidance does.
func packageFromRepository(repository string) string {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return repository
}

func compileOptionalPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

func optionalNonNegativeInt(v *viper.Viper, key string) (*int, error) {
	raw := v.GetString(key)
	if raw == "" {
		return nil, nil
	}
	n := v.GetInt(key)
	if n < 0 {
		return nil, fmt.Errorf("config: %s must be non-negative, got %d", key, n)
	}
	return &n, nil
}
