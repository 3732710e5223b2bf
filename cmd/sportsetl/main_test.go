package main

import (
	"flag"
	"strings"
	"testing"

	"github.com/andresuchdata/sports-etl/internal/config"
	"github.com/andresuchdata/sports-etl/internal/domain"
	"github.com/urfave/cli/v2"
)

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"fetch", "load", "probe", "all", "serve"} {
		if app.Command(name) == nil {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestAllSucceeded(t *testing.T) {
	ok := &domain.StageReport{Status: domain.RunStatusSucceeded}
	failed := &domain.StageReport{Status: domain.RunStatusFailed}

	tests := []struct {
		name    string
		reports []*domain.StageReport
		want    int
		expect  bool
	}{
		{"all good", []*domain.StageReport{ok, ok}, 2, true},
		{"one failed", []*domain.StageReport{ok, failed}, 2, false},
		{"stopped early", []*domain.StageReport{failed}, 2, false},
		{"none", nil, 1, false},
	}
	for _, tt := range tests {
		if got := allSucceeded(tt.reports, tt.want); got != tt.expect {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expect, got)
		}
	}
}

func newContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.Bool("strict", false, "")
	set.String("log-level", "", "")
	if err := set.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cli.NewContext(newApp(), set, nil)
}

func TestStrictExit(t *testing.T) {
	strictCfg := &config.Config{Pipeline: config.PipelineConfig{StrictExit: true}}

	if strictExit(newContext(t), nil) {
		t.Error("expected lenient exit by default")
	}
	if !strictExit(newContext(t, "-strict"), nil) {
		t.Error("expected --strict to enable strict exit")
	}
	if !strictExit(newContext(t), strictCfg) {
		t.Error("expected PIPELINE_STRICT_EXIT to enable strict exit")
	}
}

func TestLogLevel(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{LogLevel: "warn"}}
	if got := logLevel(newContext(t), cfg); got != "warn" {
		t.Errorf("expected config level, got %s", got)
	}
	if got := logLevel(newContext(t, "-log-level", "debug"), cfg); got != "debug" {
		t.Errorf("expected flag level, got %s", got)
	}
}

func TestStrictFlagPosition(t *testing.T) {
	t.Setenv("PIPELINE_STRICT_EXIT", "")

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"sportsetl", "fetch"}, false},
		{[]string{"sportsetl", "--strict", "fetch"}, true},
		{[]string{"sportsetl", "fetch", "--strict"}, true},
		{[]string{"sportsetl", "load", "--strict"}, true},
		{[]string{"sportsetl", "probe", "--strict"}, true},
		{[]string{"sportsetl", "--strict", "all"}, true},
		{[]string{"sportsetl", "all", "--strict"}, true},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args[1:], " "), func(t *testing.T) {
			app := newApp()
			var got, ran bool
			for _, cmd := range app.Commands {
				cmd.Action = func(c *cli.Context) error {
					ran = true
					got = strictExit(c, nil)
					return nil
				}
			}

			if err := app.Run(tt.args); err != nil {
				t.Fatalf("Run(%v): %v", tt.args, err)
			}
			if !ran {
				t.Fatalf("Run(%v): command did not run", tt.args)
			}
			if got != tt.want {
				t.Errorf("Run(%v): strict = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}
