package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:]))
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageErr(err error) error { return &exitError{code: exitUsage, err: err} }

func exitCode(code int) error { return &exitError{code: code} }

func run(ctx context.Context, args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, ee.err)
		}
		return ee.code
	}
	fmt.Fprintln(os.Stderr, err)
	return exitFailed
}

func newRootCmd() *cobra.Command {
	opts := &installFlags{}

	root := &cobra.Command{
		Use:   "fv2",
		Short: "Guided installer for the Ensight FLIv2 vision stack",
		Long: "fv2 provisions a Windows host for FLIv2: GPU runtime libraries, TensorRT tools,\n" +
			"ONNX models, engine builds, the FLIv2 service and its configuration.\n\n" +
			"Run without a command to start the interactive installer.",
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd.Context(), opts)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageErr(err) })
	root.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "Config file (YAML or TOML) layered over the defaults")
	addInstallFlags(root, opts)

	install := &cobra.Command{
		Use:   "install",
		Short: "Run the installer",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd.Context(), opts)
		},
	}
	addInstallFlags(install, opts)

	root.AddCommand(
		install,
		newStepsCmd(opts),
		newHistoryCmd(opts),
		newLogCmd(opts),
		newConfigCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Args:  usageArgs(cobra.NoArgs),
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "FLIv2 Installer %s (%s, %s)\n", Version, GitCommit, BuildDate)
			},
		},
	)
	return root
}

func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageErr(err)
		}
		return nil
	}
}
