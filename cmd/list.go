package cmd

import (
	"context"
	"fmt"

	"github.com/ghcr-tools/ghcr-prune/internal/display"
	"github.com/ghcr-tools/ghcr-prune/internal/ghapi"
	"github.com/spf13/cobra"
)

// newListCmd builds the `list` command, retained from the teacher's
// exploratory surface: list every container package an owner publishes.
func newListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List container packages for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listAction(cmd.Context(), owner)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "GHCR owner (organization or user); defaults to the configured owner")

	return cmd
}

func listAction(ctx context.Context, owner string) error {
	owner, err := resolveOwner(owner)
	if err != nil {
		return err
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

	names, err := client.ListPackages(ctx, owner, ownerType)
	if err != nil {
		return fmt.Errorf("cmd: listing packages: %w", err)
	}

	for _, name := range names {
		fmt.Println(display.ColorHeader(name))
	}
	return nil
}
