package main

import (
	"context"
	"testing"

	"github.com/kayleschmoyer/Fv2/internal/config"
	"github.com/kayleschmoyer/Fv2/internal/engine/install"
)

func TestRunExitCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		args []string
		want int
	}{
		{[]string{"version"}, exitOK},
		{[]string{"config", "schema"}, exitOK},
		{[]string{"--no-such-flag"}, exitUsage},
		{[]string{"version", "extra"}, exitUsage},
		{[]string{"install", "--only", "no-such-step"}, exitUsage},
		{[]string{"install", "--redo", "rebuildEverything"}, exitUsage},
		{[]string{"config", "show", "--format", "ini"}, exitUsage},
	}
	for _, tc := range cases {
		if got := run(context.Background(), tc.args); got != tc.want {
			t.Fatalf("run(%q)=%d; want %d", tc.args, got, tc.want)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	err := applyFlags(&cfg, &installFlags{
		only:     []string{install.StepCheckAdmin, install.StepLockGPUClocks},
		skip:     []string{install.StepLockGPUClocks},
		redo:     []string{"rebuildEngine"},
		logLevel: "debug",
		cli:      true,
	})
	if err != nil {
		t.Fatalf("applyFlags: %v", err)
	}

	var enabled []string
	for _, d := range cfg.StepDefs() {
		if d.Enabled {
			enabled = append(enabled, d.ID)
		}
	}
	if len(enabled) != 1 || enabled[0] != install.StepCheckAdmin {
		t.Fatalf("enabled=%q; want [%s]", enabled, install.StepCheckAdmin)
	}
	if got := cfg.RedoOptions(); len(got) != 1 || got[0] != install.OptRebuildEngine {
		t.Fatalf("redo=%v; want [rebuildEngine]", got)
	}
	if cfg.Log.Level != "debug" || cfg.UI.Mode != "cli" {
		t.Fatalf("level=%q mode=%q; want debug/cli", cfg.Log.Level, cfg.UI.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
