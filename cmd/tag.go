package cmd

import (
	"context"
	"fmt"

	"github.com/ghcr-tools/ghcr-prune/internal/oras"
	"github.com/spf13/cobra"
)

// newTagCmd builds the `tag` command, retained from the teacher: point a
// new tag at the same digest an existing tag resolves to, via ORAS directly
// against the registry (distinct from internal/executor's tag-detachment
// protocol, which removes a tag rather than adding one).
func newTagCmd() *cobra.Command {
	var image, from string

	cmd := &cobra.Command{
		Use:   "tag <new-tag>",
		Short: "Point a new tag at an existing tag's digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tagAction(cmd.Context(), image, from, args[0])
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "Image reference, e.g. ghcr.io/owner/package")
	cmd.Flags().StringVar(&from, "from", "", "Source tag to copy")
	cmd.MarkFlagRequired("image")
	cmd.MarkFlagRequired("from")

	return cmd
}

func tagAction(ctx context.Context, image, from, to string) error {
	if err := oras.CopyTag(ctx, image, from, to); err != nil {
		return fmt.Errorf("cmd: tagging: %w", err)
	}
	fmt.Printf("%s -> %s\n", to, from)
	return nil
}
