package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/kayleschmoyer/Fv2/internal/config"
	"github.com/kayleschmoyer/Fv2/internal/domain"
	"github.com/kayleschmoyer/Fv2/internal/engine/install"
	"github.com/kayleschmoyer/Fv2/internal/history"
	"github.com/kayleschmoyer/Fv2/internal/logging"
	"github.com/kayleschmoyer/Fv2/internal/services/archive"
	"github.com/kayleschmoyer/Fv2/internal/services/drive"
	"github.com/kayleschmoyer/Fv2/internal/services/fsys"
	"github.com/kayleschmoyer/Fv2/internal/services/process"
	"github.com/kayleschmoyer/Fv2/internal/telemetry"
	"github.com/kayleschmoyer/Fv2/internal/ui"
)

type installFlags struct {
	config      string
	cli         bool
	quiet       bool
	yesPrecheck bool
	redo        []string
	only        []string
	skip        []string
	logLevel    string
	logAlways   bool
	demo        bool
	noColor     bool
}

func addInstallFlags(cmd *cobra.Command, o *installFlags) {
	f := cmd.Flags()
	f.BoolVar(&o.cli, "cli", false, "Run with line prompts instead of the full-screen UI")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "Reduce CLI output (warnings and errors only)")
	f.BoolVar(&o.yesPrecheck, "yes-precheck", false, "Affirm every pre-installation check")
	f.StringSliceVar(&o.redo, "redo", nil, "Redo options to pre-set (e.g. rebuildEngine,redownloadOnnx)")
	f.StringSliceVar(&o.only, "only", nil, "Enable only these step ids")
	f.StringSliceVar(&o.skip, "skip", nil, "Disable these step ids")
	f.StringVar(&o.logLevel, "log-level", "", "Diagnostics level: debug, info, warn, error")
	f.BoolVar(&o.logAlways, "log", false, "Always write the installer log, even on success")
	f.BoolVar(&o.demo, "demo", false, "Run against a simulated host; nothing is installed")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colors")
}

// loadConfig layers the config files and the command line.
func loadConfig(o *installFlags) (config.Config, []string, error) {
	cfg, files, err := config.Load(o.config)
	if err != nil {
		return cfg, files, usageErr(err)
	}
	if err := applyFlags(&cfg, o); err != nil {
		return cfg, files, usageErr(err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, files, usageErr(err)
	}
	return cfg, files, nil
}

func applyFlags(cfg *config.Config, o *installFlags) error {
	known := map[string]bool{}
	var ids []string
	for _, d := range install.DefaultSteps() {
		known[d.ID] = true
		ids = append(ids, d.ID)
	}
	check := func(flag string, list []string) error {
		for _, id := range list {
			if !known[id] {
				return fmt.Errorf("--%s: unknown step %q", flag, id)
			}
		}
		return nil
	}
	if err := check("only", o.only); err != nil {
		return err
	}
	if err := check("skip", o.skip); err != nil {
		return err
	}
	if cfg.Steps == nil {
		cfg.Steps = map[string]config.StepConfig{}
	}
	setEnabled := func(id string, v bool) {
		sc := cfg.Steps[id]
		sc.Enabled = &v
		cfg.Steps[id] = sc
	}
	if len(o.only) > 0 {
		only := map[string]bool{}
		for _, id := range o.only {
			only[id] = true
		}
		for _, id := range ids {
			setEnabled(id, only[id])
		}
	}
	for _, id := range o.skip {
		setEnabled(id, false)
	}

	for _, r := range o.redo {
		opt, err := install.ParseOption(strings.TrimSpace(r))
		if err != nil {
			return fmt.Errorf("--redo: %w", err)
		}
		cfg.Install.Redo = append(cfg.Install.Redo, string(opt))
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.cli {
		cfg.UI.Mode = "cli"
	}
	if o.noColor {
		cfg.UI.NoColor = true
	}
	return nil
}

func runInstall(ctx context.Context, o *installFlags) error {
	cfg, files, err := loadConfig(o)
	if err != nil {
		return err
	}

	mode := cfg.UI.Mode
	if mode == "" || mode == "auto" {
		mode = "tui"
		if !ui.IsTerminal() {
			mode = "cli"
		}
	}
	if cfg.UI.NoColor || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	logDir := cfg.Log.Dir
	if logDir == "" {
		logDir = logging.DefaultDir()
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	var diag io.Writer = io.Discard
	if f, err := logging.OpenDiagnostics(logDir); err == nil {
		defer f.Close()
		diag = f
	} else {
		fmt.Fprintf(os.Stderr, "Diagnostics log disabled: %v\n", err)
	}
	logger := logging.Configure(level, diag)
	logger.Info("installer starting", "version", Version, "mode", mode, "demo", o.demo, "config", strings.Join(files, ","))

	prov, err := telemetry.Setup(telemetry.Config{Exporter: cfg.Telemetry.Exporter, Logger: logger})
	if err != nil {
		return usageErr(err)
	}
	prov.Register()
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = prov.Shutdown(sctx)
	}()

	when, err := cfg.Conditions()
	if err != nil {
		return usageErr(err)
	}

	settings := cfg.Settings()
	var deps install.Deps
	if o.demo {
		deps = demoDeps(&settings)
	} else {
		deps = hostDeps(ctx, cfg, logger, mode == "cli")
	}

	opt := install.EngineOptions{
		Settings:   settings,
		Steps:      cfg.StepDefs(),
		AwaitStart: true,
		PreChecked: o.yesPrecheck,
		Redo:       cfg.RedoOptions(),
		Tracer:     prov.Tracer(),
		When:       when,
		Logger:     logger,
	}
	if cfg.HistoryEnabled() && !o.demo {
		path := cfg.History.Path
		if path == "" {
			path = history.DefaultPath()
		}
		store, err := history.Open(path)
		if err != nil {
			logger.Warn("run history disabled", "path", path, "err", err)
		} else {
			defer store.Close()
			opt.History = store
		}
	}

	logMode := mode
	if o.demo {
		logMode += " (demo)"
	}
	evLog := logging.NewEventLogger(logging.Config{
		Always:  o.logAlways,
		Dir:     logDir,
		Version: Version,
		Mode:    logMode,
		Options: cfg.Install.Redo,
		Secrets: []string{cfg.FLI.APIKey},
	})

	events := make(chan domain.Event, 256)
	actions := make(chan domain.Action, 16)
	engineCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	install.New(opt, deps).Run(engineCtx, events, actions)

	rec := newRecorder(events, evLog)
	var runErr error
	if mode == "cli" {
		runErr = runCLI(ctx, rec.out, actions, cancel, newCLIOutput(cfg.UI.NoColor, o.quiet))
	} else {
		runErr = ui.Run(ctx, rec.out, actions, ui.Meta{
			Version: Version,
			Demo:    o.demo,
			LogDir:  logDir,
		}, cancel)
	}
	cancel()
	rec.wait()

	res, started := rec.result()
	code := exitOK
	switch {
	case ctx.Err() != nil:
		code = exitCancelled
	case runErr != nil:
		logger.Error("installer front end failed", "err", runErr)
		fmt.Fprintln(os.Stderr, runErr)
		code = exitFailed
	case res != nil && !res.OK:
		code = exitFailed
	case res == nil && started:
		code = exitCancelled
	}
	if code != exitOK {
		evLog.MarkFailure()
	}
	logRes, logErr := evLog.Finalize()
	if logErr != nil {
		fmt.Fprintln(os.Stderr, logErr)
	}
	if logRes.Written {
		fmt.Fprintf(os.Stderr, "Installer log saved to %s\n", logRes.Path)
	}
	logger.Info("installer finished", "exit", code)
	if code != exitOK {
		return exitCode(code)
	}
	return nil
}

func hostDeps(ctx context.Context, cfg config.Config, logger *slog.Logger, cli bool) install.Deps {
	proc := process.New()
	auth := drive.NewAuthenticator(drive.AuthConfig{
		CredentialsFile: cfg.Drive.CredentialsFile,
		TokenReuse:      drive.TokenReuse(cfg.Drive.TokenReuse),
		OnAuthURL: func(url string) {
			logger.Info("drive sign-in started")
			if cli {
				fmt.Fprintf(os.Stderr, "Sign in to Google Drive in your browser:\n  %s\n", url)
			}
			if err := proc.OpenURL(ctx, url); err != nil {
				logger.Warn("could not open browser", "err", err)
			}
		},
	})
	return install.Deps{
		FS:      fsys.New(),
		Process: proc,
		Drive:   drive.NewService(auth, drive.ClientOptions{MaxRetries: uint64(cfg.Drive.MaxRetries)}),
		Archive: archive.New(archive.Options{}),
	}
}

// recorder copies engine events into the installer log on their way to the
// front end and remembers how the last run ended.
type recorder struct {
	out  chan domain.Event
	stop chan struct{}
	done chan struct{}

	mu      sync.Mutex
	last    *domain.RunDonePayload
	started bool
}

func newRecorder(in <-chan domain.Event, evLog *logging.EventLogger) *recorder {
	r := &recorder{
		out:  make(chan domain.Event, cap(in)),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		defer close(r.out)
		for ev := range in {
			evLog.Record(ev)
			r.observe(ev)
			select {
			case r.out <- ev:
			case <-r.stop:
			}
		}
	}()
	return r
}

func (r *recorder) observe(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case domain.EventStepStart:
		r.started = true
		r.last = nil
	case domain.EventRunDone:
		if p, ok := ev.Payload.(domain.RunDonePayload); ok {
			r.last = &p
		}
	}
}

// wait stops forwarding and blocks until the engine has closed its stream.
func (r *recorder) wait() {
	close(r.stop)
	<-r.done
}

func (r *recorder) result() (*domain.RunDonePayload, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.started
}

var errPreChecks = errors.New("pre-installation checks were not confirmed")
