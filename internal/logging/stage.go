package logging

import (
	"fmt"
	"io"
	"os"
)

// StageLogger emits one log group per pipeline stage (load versions,
// determine include/exclude/keep sets, final plan, delete tags, delete
// versions), extending the teacher's JSON-lines API transport logger
// (kept for --log-api-calls diagnostics) with a second, independent
// structured logger aimed at the operator rather than at the API call
// trace. Groups fold under ::group::/::endgroup:: markers when running
// inside GitHub Actions, and print as plain indented text otherwise.
type StageLogger struct {
	w       io.Writer
	actions bool
	quiet   bool
	inGroup bool
}

// NewStageLogger builds a StageLogger writing to w. actionsFolding controls
// whether stages are wrapped in GitHub Actions' ::group::/::endgroup::
// markers; pass quiet to suppress everything but Group/End (used by the
// teacher's --quiet convention, internal/quiet).
func NewStageLogger(w io.Writer, actionsFolding, quiet bool) *StageLogger {
	return &StageLogger{w: w, actions: actionsFolding, quiet: quiet}
}

// NewDefaultStageLogger builds a StageLogger writing to stderr, detecting
// GitHub Actions via the GITHUB_ACTIONS=true environment variable.
func NewDefaultStageLogger(quiet bool) *StageLogger {
	return NewStageLogger(os.Stderr, os.Getenv("GITHUB_ACTIONS") == "true", quiet)
}

// Group opens a new stage, first ending any group that is still open.
// Callers call End after the last group.
func (l *StageLogger) Group(stage string) {
	if l.inGroup {
		l.End()
	}
	l.inGroup = true
	if l.actions {
		fmt.Fprintf(l.w, "::group::%s\n", stage)
		return
	}
	fmt.Fprintf(l.w, "%s\n", stage)
}

// End closes the currently open stage.
func (l *StageLogger) End() {
	if !l.inGroup {
		return
	}
	l.inGroup = false
	if l.actions {
		fmt.Fprintln(l.w, "::endgroup::")
	}
}

// Line logs a single line within the current stage, indented when not
// inside an Actions log group. Suppressed entirely in quiet mode.
func (l *StageLogger) Line(format string, args ...interface{}) {
	if l.quiet {
		return
	}
	if l.actions {
		fmt.Fprintf(l.w, format+"\n", args...)
		return
	}
	fmt.Fprintf(l.w, "  "+format+"\n", args...)
}
