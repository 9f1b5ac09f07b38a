package cmd

import (
	"fmt"

	"github.com/ghcr-tools/ghcr-prune/internal/config"
	"github.com/spf13/cobra"
)

// newConfigCmd builds the `config` command group, retained from the
// teacher's cmd/config.go: persist a default owner so list/graph can omit
// --owner on every invocation.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the persisted default owner",
		Long:  "Manage the default GHCR owner stored in ~/.ghcr-prune/config.yaml",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigOrgCmd())
	cmd.AddCommand(newConfigUserCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the configured owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New()
			name, ownerType, err := cfg.GetOwner()
			if err != nil {
				return fmt.Errorf("cmd: reading configuration: %w", err)
			}

			if name == "" || ownerType == "" {
				fmt.Println("No owner configured.")
				fmt.Println("Set an organization with: ghcr-prune config org <org-name>")
				fmt.Println("Set a user with: ghcr-prune config user <user-name>")
				return nil
			}

			fmt.Printf("owner-name: %s\n", name)
			fmt.Printf("owner-type: %s\n", ownerType)
			return nil
		},
	}
}

func newConfigOrgCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "org <org-name>",
		Short: "Set the default owner to an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setOwnerAction(args[0], "org")
		},
	}
}

func newConfigUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <user-name>",
		Short: "Set the default owner to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setOwnerAction(args[0], "user")
		},
	}
}

func setOwnerAction(name, ownerType string) error {
	cfg := config.New()
	if err := cfg.SetOwner(name, ownerType); err != nil {
		return fmt.Errorf("cmd: setting owner: %w", err)
	}
	fmt.Printf("owner set to %s: %s\n", ownerType, name)
	return nil
}
