package ghapi

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetToken(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		setEnv    bool
		wantToken string
		wantError bool
		errorMsg  string
	}{
		{
			name:      "token present in environment",
			envValue:  "ghp_test_token_12345",
			setEnv:    true,
			wantToken: "ghp_test_token_12345",
			wantError: false,
		},
		{
			name:      "token missing from environment",
			setEnv:    false,
			wantError: true,
			errorMsg:  "GITHUB_TOKEN environment variable not set",
		},
		{
			name:      "token is empty string",
			envValue:  "",
			setEnv:    true,
			wantError: true,
			errorMsg:  "GITHUB_TOKEN environment variable is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalToken, hadOriginal := os.LookupEnv("GITHUB_TOKEN")
			defer func() {
				if hadOriginal {
					os.Setenv("GITHUB_TOKEN", originalToken)
				} else {
					os.Unsetenv("GITHUB_TOKEN")
				}
			}()

			if tt.setEnv {
				os.Setenv("GITHUB_TOKEN", tt.envValue)
			} else {
				os.Unsetenv("GITHUB_TOKEN")
			}

			token, err := GetToken()
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestNewClient(t *testing.T) {
	t.Run("empty token is rejected", func(t *testing.T) {
		_, err := NewClient("")
		assert.Error(t, err)
	})

	t.Run("valid token constructs a client", func(t *testing.T) {
		c, err := NewClient("ghp_test_token")
		require.NoError(t, err)
		assert.NotNil(t, c)
	})
}

func TestListPackages_ValidatesInputs(t *testing.T) {
	c, err := NewClient("ghp_test_token")
	require.NoError(t, err)

	_, err = c.ListPackages(context.Background(), "", "org")
	assert.Error(t, err)

	_, err = c.ListPackages(context.Background(), "owner", "invalid")
	assert.Error(t, err)
}

func TestGetOwnerType_ValidatesInputs(t *testing.T) {
	c, err := NewClient("ghp_test_token")
	require.NoError(t, err)

	_, err = c.GetOwnerType(context.Background(), "")
	assert.Error(t, err)
}

func TestListVersions_ValidatesInputs(t *testing.T) {
	c, err := NewClient("ghp_test_token")
	require.NoError(t, err)

	cases := []struct {
		owner, ownerType, pkg string
	}{
		{"", "org", "pkg"},
		{"owner", "invalid", "pkg"},
		{"owner", "org", ""},
	}
	for _, tc := range cases {
		_, err := c.ListVersions(context.Background(), tc.owner, tc.ownerType, tc.pkg)
		assert.Error(t, err)
	}
}

func TestDeleteVersion_ValidatesInputs(t *testing.T) {
	c, err := NewClient("ghp_test_token")
	require.NoError(t, err)

	assert.Error(t, c.DeleteVersion(context.Background(), "", "org", "pkg", 1))
	assert.Error(t, c.DeleteVersion(context.Background(), "owner", "invalid", "pkg", 1))
	assert.Error(t, c.DeleteVersion(context.Background(), "owner", "org", "", 1))
	assert.Error(t, c.DeleteVersion(context.Background(), "owner", "org", "pkg", 0))
}

func TestIsLastTaggedVersionError(t *testing.T) {
	assert.False(t, IsLastTaggedVersionError(nil))
	assert.True(t, IsLastTaggedVersionError(errLastTagged{}))
}

type errLastTagged struct{}

func (errLastTagged) Error() string { return "cannot delete the last tagged version of a package" }
