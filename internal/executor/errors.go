// Package executor applies a selection.Result against the live registry
// and GitHub Packages API: detaching tags via the ghost-manifest rewrite
// protocol and deleting versions with bounded concurrency. The forest built
// at load time is not rebuilt after deletions, and a detached tag keeps its
// entry in the forest's key index.
package executor

import "errors"

// ErrPlanApplyFailure wraps an individual DeleteVersion failure. It is
// logged and counted but never aborts the run, per §7.
var ErrPlanApplyFailure = errors.New("executor: failed to apply part of the plan")
