package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ghcr-tools/ghcr-prune/internal/config"
	"github.com/ghcr-tools/ghcr-prune/internal/executor"
	"github.com/ghcr-tools/ghcr-prune/internal/forest"
	"github.com/ghcr-tools/ghcr-prune/internal/ghapi"
	"github.com/ghcr-tools/ghcr-prune/internal/logging"
	"github.com/ghcr-tools/ghcr-prune/internal/manifest"
	"github.com/ghcr-tools/ghcr-prune/internal/pkgversion"
	"github.com/ghcr-tools/ghcr-prune/internal/quiet"
	"github.com/ghcr-tools/ghcr-prune/internal/registry"
	"github.com/ghcr-tools/ghcr-prune/internal/selection"
	"github.com/spf13/cobra"
)

// newRunCmd builds the `run` command, the Action entrypoint: load config
// from the environment, ingest the forest, compute the selection plan, and
// apply it, per SPEC_FULL.md §2's control flow.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Compute and apply the prune plan for a package",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd)
		},
	}
}

func runAction(cmd *cobra.Command) error {
	ctx := cmd.Context()
	rc, err := config.LoadRunConfig()
	if err != nil {
		return err
	}

	client, err := ghapi.NewClientWithContext(ctx, rc.Token)
	if err != nil {
		return fmt.Errorf("cmd: constructing GitHub client: %w", err)
	}

	ownerType := rc.OwnerType
	if ownerType == "" {
		ownerType, err = client.GetOwnerType(ctx, rc.Owner)
		if err != nil {
			return fmt.Errorf("cmd: determining owner type: %w", err)
		}
	}

	gateway := registry.NewHTTPGateway(nil, rc.Token)

	isQuiet := quiet.IsQuiet(ctx)
	stage := logging.NewDefaultStageLogger(isQuiet)

	exec := &executor.Executor{
		Gateway:   gateway,
		Client:    client,
		Owner:     rc.Owner,
		OwnerType: ownerType,
		Package:   rc.Package,
		Config: selection.Config{
			IncludeTags:   rc.IncludeTags,
			ExcludeTags:   rc.ExcludeTags,
			KeepNTagged:   rc.KeepNTagged,
			KeepNUntagged: rc.KeepNUntagged,
		},
		DryRun: rc.DryRun,
		Log: func(line string) {
			stage.Line("%s", line)
		},
		RenderPlan: func(f *forest.Forest, plan selection.Result) {
			var buf bytes.Buffer
			f.Render(&buf, planLabel(plan))
			for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
				stage.Line("%s", line)
			}
		},
	}

	stage.Group(fmt.Sprintf("prune %s/%s", rc.Owner, rc.Package))
	report, err := exec.Run(ctx)
	stage.End()
	if err != nil {
		return err
	}

	stage.Group("summary")
	stage.Line("tags detached: %d", len(report.TagsDeleted))
	stage.Line("versions deleted: %d", len(report.VersionsDeleted))
	if report.VersionFailures > 0 {
		stage.Line("version deletion failures: %d", report.VersionFailures)
	}
	stage.End()

	return nil
}

// planLabel builds a label func for f.Render that marks every version the
// plan would delete, so an operator sees the run's effect on the forest
// before (or instead of, under --dry-run) it actually happens, per §7's
// "tree.Render of the final version-delete plan".
func planLabel(plan selection.Result) func(*pkgversion.Version) string {
	marked := make(map[manifest.Digest]bool, len(plan.VersionsDelete))
	for _, v := range plan.VersionsDelete {
		marked[v.Name] = true
	}

	return func(v *pkgversion.Version) string {
		out := label(v)
		if marked[v.Name] {
			out += " [delete]"
		}
		return out
	}
}
