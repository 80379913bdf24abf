package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/kayleschmoyer/Fv2/internal/config"
	"github.com/kayleschmoyer/Fv2/internal/history"
	"github.com/kayleschmoyer/Fv2/internal/logging"
)

func newStepsCmd(o *installFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List the installation steps and whether they are enabled",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(o)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tID\tENABLED\tTITLE\tWHEN")
			for i, d := range cfg.StepDefs() {
				enabled := "yes"
				if !d.Enabled {
					enabled = "no"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, d.ID, enabled, d.Title, cfg.Steps[d.ID].When)
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd(o *installFlags) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent installer runs",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(o)
			if err != nil {
				return err
			}
			path := cfg.History.Path
			if path == "" {
				path = history.DefaultPath()
			}
			store, err := history.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			if runID != "" {
				steps, err := store.Steps(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(steps) == 0 {
					return fmt.Errorf("run %s: %w", runID, history.ErrUnknownRun)
				}
				fmt.Fprintln(w, "STEP\tSTATUS\tDURATION\tMESSAGE")
				for _, s := range steps {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.StepID, s.Status, s.Duration().Round(time.Millisecond), s.Message)
				}
				return w.Flush()
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tSTEPS\tFAILED AT\tOPTIONS")
			for _, r := range runs {
				var opts []string
				for k, v := range r.Options {
					if v {
						opts = append(opts, k)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.Started.Local().Format("2006-01-02 15:04:05"), r.Status, r.Steps, r.FailedAt, strings.Join(opts, ","))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the step results of one run")
	return cmd
}

func newLogCmd(o *installFlags) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the most recent installer log",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(o)
			if err != nil {
				return err
			}
			dir := cfg.Log.Dir
			if dir == "" {
				dir = logging.DefaultDir()
			}
			path, err := logging.NewestLog(dir)
			if errors.Is(err, logging.ErrNoLogs) {
				fmt.Fprintf(cmd.OutOrStdout(), "No installer logs in %s.\n", dir)
				return nil
			}
			if err != nil {
				return err
			}
			md, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if raw || !term.IsTerminal(os.Stdout.Fd()) {
				_, err = cmd.OutOrStdout().Write(md)
				return err
			}

			width := 100
			if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 20 {
				width = min(w, 120)
			}
			r, err := glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(width),
			)
			if err != nil {
				return err
			}
			out, err := r.Render(string(md))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the Markdown source")
	return cmd
}

func newConfigCmd(o *installFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect installer configuration",
	}

	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of config files",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := config.GenerateJSONSchema()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, files, err := loadConfig(o)
			if err != nil {
				return err
			}
			var ext string
			switch format {
			case "yaml", "yml":
				ext = ".yaml"
			case "toml":
				ext = ".toml"
			default:
				return usageErr(fmt.Errorf("--format: want yaml or toml, got %q", format))
			}
			b, err := cfg.Marshal(ext)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintf(cmd.ErrOrStderr(), "# applied %s\n", f)
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	show.Flags().StringVar(&format, "format", "yaml", "Output format: yaml or toml")

	cmd.AddCommand(schema, show)
	return cmd
}
