// Package cli provides the keel command-line interface, a scripting and
// debugging front end over the same service layer a desktop client uses.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mrz1836/keel/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// newRootCmd creates the root command. a is wired in PersistentPreRunE so
// that every subcommand shares one cache, registry and logger.
func newRootCmd(a *app, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "keel",
		Short: "Keel - git operation engine for desktop clients",
		Long: `Keel drives merge, rebase, cherry-pick, revert, reset and remote sync
operations on a git working tree, reports conflicts as data and runs the
repository's hooks as gates around every step.

The same operations back the desktop client; this CLI exposes them for
scripting and debugging. Use --output json for machine-readable envelopes.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd, a.flags); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			if !IsValidOutputFormat(a.flags.Output) {
				return errors.NewExitCode2Error(fmt.Errorf("%w: %q must be one of %v",
					errors.ErrInvalidOutputFormat, a.flags.Output, ValidOutputFormats()))
			}
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, a.flags)

	AddStateCommands(cmd, a)
	AddMergeCommand(cmd, a)
	AddRebaseCommand(cmd, a)
	AddCherryPickCommand(cmd, a)
	AddRevertCommand(cmd, a)
	AddResetCommand(cmd, a)
	AddResolveCommands(cmd, a)
	AddRemoteCommands(cmd, a)
	AddWatchCommand(cmd, a)
	AddAutoFetchCommand(cmd, a)
	AddConfigCommand(cmd, a)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
// Errors are printed here; the return value only feeds ExitCode.
func Execute(ctx context.Context, info BuildInfo) error {
	a := newApp(&GlobalFlags{})
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(a, info)
	err := cmd.ExecuteContext(ctx)
	a.close()

	if err != nil && !stderrors.Is(err, errors.ErrJSONErrorOutput) {
		printError(cmd.ErrOrStderr(), err)
	}
	return err
}
