package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/ghcr-tools/ghcr-prune/internal/display"
	"github.com/ghcr-tools/ghcr-prune/internal/executor"
	"github.com/ghcr-tools/ghcr-prune/internal/ghapi"
	"github.com/ghcr-tools/ghcr-prune/internal/oras"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/ghcr-tools/ghcr-prune/internal/registry"
	"github.com/ghcr-tools/ghcr-prune/internal/selection"
	"github.com/spf13/cobra"
)

// newGraphCmd builds the `graph` command: render the forest the engine
// would act on, without computing or applying a plan. Exercises
// internal/forest, internal/tree.Render, and internal/selection.DetectRole
// outside of a full `run` invocation, per SPEC_FULL.md §9's supplemented
// features. --remote-tag additionally exercises internal/oras's live
// referrer/platform discovery against the registry, bypassing the forest
// entirely (useful when a tag was just pushed and hasn't been re-fetched
// into a `list`/`run` invocation's view of the package yet).
func newGraphCmd() *cobra.Command {
	var owner, pkg, remoteTag string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the artifact forest for a package",
		RunE: func(cmd *cobra.Command, args []string) error {
			return graphAction(cmd.Context(), owner, pkg, remoteTag)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "GHCR owner (organization or user); defaults to the configured owner")
	cmd.Flags().StringVar(&pkg, "package", "", "Package (repository) name")
	cmd.Flags().StringVar(&remoteTag, "remote-tag", "", "Resolve this tag live via ORAS and print its platform/referrer breakdown, bypassing the forest")
	cmd.MarkFlagRequired("package")

	return cmd
}

func graphAction(ctx context.Context, owner, pkg, remoteTag string) error {
	owner, err := resolveOwner(owner)
	if err != nil {
		return err
	}

	if remoteTag != "" {
		return graphRemoteTag(ctx, owner, pkg, remoteTag)
	}

	token, err := ghapi.GetToken()
	if err != nil {
		return err
	}
	client, err := ghapi.NewClientWithContext(ctx, token)
	if err != nil {
		return fmt.Errorf("cmd: constructing GitHub client: %w", err)
	}

	ownerType, err := client.GetOwnerType(ctx, owner)
	if err != nil {
		return fmt.Errorf("cmd: determining owner type: %w", err)
	}

	gateway := registry.NewHTTPGateway(nil, token)

	_, f, err := executor.LoadForest(ctx, client, gateway, owner, ownerType, pkg)
	if err != nil {
		return err
	}

	f.Render(os.Stdout, label)
	return nil
}

// graphRemoteTag resolves tag directly against the registry via ORAS and
// prints its platform manifests and attestation referrers, skipping the
// GitHub Packages API and forest construction entirely.
func graphRemoteTag(ctx context.Context, owner, pkg, tag string) error {
	image := fmt.Sprintf("ghcr.io/%s/%s", owner, pkg)

	digest, err := oras.ResolveTag(ctx, image, tag)
	if err != nil {
		return fmt.Errorf("cmd: resolving tag %q: %w", tag, err)
	}
	fmt.Printf("%s -> %s\n", tag, display.ShortDigest(digest))

	platforms, err := oras.GetPlatformManifests(ctx, image, digest)
	if err != nil {
		return fmt.Errorf("cmd: listing platform manifests: %w", err)
	}
	for _, p := range platforms {
		fmt.Printf("  platform %-16s %s (%d bytes)\n", p.Platform, display.ShortDigest(p.Digest), p.Size)
	}

	referrers, err := oras.DiscoverReferrers(ctx, image, digest)
	if err != nil {
		return fmt.Errorf("cmd: discovering referrers: %w", err)
	}
	for _, r := range referrers {
		role := r.Role.String()
		if role == "" {
			role = "attestation"
		}
		fmt.Printf("  referrer %s %-12s %s\n", display.ShortDigest(r.Digest), role, r.MediaType)
	}
	return nil
}

// label formats one tree node, coloring the artifact type and annotating
// attestations with the teacher's richer sub-role when detected.
func label(v *pkgversion.Version) string {
	typ := display.ColorVersionType(v.Type.String())
	if v.Type == pkgversion.TypeAttestation {
		if role := selection.DetectRole(v.Manifest); role != selection.RoleNone {
			typ = fmt.Sprintf("%s (%s)", typ, role)
		}
	}
	return fmt.Sprintf("%s %s %s", display.ShortDigest(string(v.Name)), typ, display.ColorTags(v.Tags))
}
