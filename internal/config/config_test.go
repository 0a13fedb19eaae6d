package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/genctl/internal/generators"
	"github.com/danmuck/genctl/internal/layout"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateLoadsAsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}

	want := Default()
	want.Steps = []string{generators.StepNetwork, generators.StepSensor}
	want.Env = []string{}
	want.History.Path = ".genctl/history.db"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("template differs from defaults (-want +got):\n%s", diff)
	}

	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected existing config error")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
interpreter = "python3"
path_style = "windows"
policy = "continue"
preflight = false
changed_only = true
steps = ["sensor", " "]
env = ["PYTHONUNBUFFERED=1"]
local_config = "pdm.yaml"

[network]
dir = "libs/gophercan/network_autogen"
config = "configs/go4-25.yaml"

[sensor]
script = "gen.py"

[history]
enabled = false

[metrics]
textfile = "/var/lib/node_exporter/genctl.prom"

[tracing]
endpoint = "collector:4318"

[watch]
debounce = "2s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interpreter != "python3" {
		t.Fatalf("unexpected interpreter: %q", cfg.Interpreter)
	}
	if cfg.PathStyle != layout.StyleWindows {
		t.Fatalf("unexpected path style: %q", cfg.PathStyle)
	}
	if cfg.Policy != generators.PolicyContinue {
		t.Fatalf("unexpected policy: %q", cfg.Policy)
	}
	if cfg.Preflight || !cfg.ChangedOnly {
		t.Fatalf("unexpected preflight/changed_only: %v/%v", cfg.Preflight, cfg.ChangedOnly)
	}
	if diff := cmp.Diff([]string{"sensor"}, cfg.Steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"libs", "gophercan", "network_autogen"}, cfg.Offsets.NetworkGenDir); diff != "" {
		t.Fatalf("unexpected network dir (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"configs", "go4-25.yaml"}, cfg.Offsets.CarConfig); diff != "" {
		t.Fatalf("unexpected car config (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Gopher_Sense"}, cfg.Offsets.SensorGenDir); diff != "" {
		t.Fatalf("expected default sensor dir (-want +got):\n%s", diff)
	}
	if cfg.Offsets.LocalConfig != "pdm.yaml" {
		t.Fatalf("unexpected local config: %q", cfg.Offsets.LocalConfig)
	}
	if cfg.NetworkScript != generators.DefaultNetworkScript || cfg.SensorScript != "gen.py" {
		t.Fatalf("unexpected scripts: %q/%q", cfg.NetworkScript, cfg.SensorScript)
	}
	if cfg.History.Enabled {
		t.Fatalf("expected history disabled")
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/genctl.prom" {
		t.Fatalf("unexpected metrics textfile: %q", cfg.Metrics.Textfile)
	}
	if cfg.Tracing.Endpoint != "collector:4318" || !cfg.Tracing.Insecure {
		t.Fatalf("unexpected tracing: %+v", cfg.Tracing)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Fatalf("unexpected debounce: %v", cfg.Watch.Debounce)
	}

	plan := cfg.PlanConfig()
	if plan.Interpreter != "python3" || len(plan.Only) != 1 || plan.SensorScript != "gen.py" {
		t.Fatalf("unexpected plan config: %+v", plan)
	}
}

func TestStepIDsMatchCaseInsensitively(t *testing.T) {
	cfg, err := Load(writeConfig(t, `steps = ["Sensor", " NETWORK "]`+"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"sensor", "network"}, cfg.Steps); diff != "" {
		t.Fatalf("unexpected steps (-want +got):\n%s", diff)
	}

	cfg = Default()
	cfg.Steps = []string{"Sensor"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate mixed case step: %v", err)
	}
	cfg.Steps = []string{"dbc"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected unknown step error")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"policy":   `policy = "retry"`,
		"style":    `path_style = "amiga"`,
		"debounce": "[watch]\ndebounce = \"soon\"",
		"step":     `steps = ["firmware"]`,
		"env":      `env = ["NOEQUALS"]`,
		"local":    `local_config = "cfg/bms.yaml"`,
		"unknown":  `interpretr = "python"`,
		"syntax":   `interpreter = `,
	}
	for name, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("%s: expected load error", name)
		}
	}
	if _, err := Load(writeConfig(t, `policy = "retry"`)); !errors.Is(err, generators.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, found, err := LoadOptional(filepath.Join(t.TempDir(), DefaultFileName))
	if err != nil {
		t.Fatalf("load optional: %v", err)
	}
	if found {
		t.Fatalf("expected missing config")
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("expected defaults (-want +got):\n%s", diff)
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := Default()
	wd := filepath.Join(string(filepath.Separator)+"src", "vehicle_bms")
	if got := cfg.HistoryPath(wd); got != filepath.Join(wd, ".genctl", "history.db") {
		t.Fatalf("unexpected default history path: %q", got)
	}
	cfg.History.Path = "build/ledger.db"
	if got := cfg.HistoryPath(wd); !strings.HasSuffix(got, filepath.Join("vehicle_bms", "build", "ledger.db")) {
		t.Fatalf("unexpected relative history path: %q", got)
	}
}
