package cmd

import (
	"fmt"

	"github.com/ghcr-tools/ghcr-prune/internal/config"
)

// resolveOwner returns flagOwner unchanged when set, otherwise falls back to
// the owner persisted via `config org`/`config user`, mirroring the
// teacher's own flag-then-dotfile precedence in cmd/graph.go, cmd/tag.go,
// cmd/versions.go, cmd/images.go, and cmd/labels.go.
func resolveOwner(flagOwner string) (string, error) {
	if flagOwner != "" {
		return flagOwner, nil
	}

	cfg := config.New()
	owner, ownerType, err := cfg.GetOwner()
	if err != nil {
		return "", fmt.Errorf("cmd: reading configuration: %w", err)
	}
	if owner == "" || ownerType == "" {
		return "", fmt.Errorf("owner not set: pass --owner or run 'config org <name>' / 'config user <name>'")
	}
	return owner, nil
}
