package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/genctl/internal/generators"
	"github.com/danmuck/genctl/internal/layout"
	"github.com/danmuck/genctl/internal/watch"
)

const DefaultFileName = "genctl.toml"

type Config struct {
	Interpreter   string
	PathStyle     layout.Style
	Offsets       layout.Offsets
	NetworkScript string
	SensorScript  string
	Steps         []string
	Env           []string
	Policy        generators.Policy
	Preflight     bool
	ChangedOnly   bool
	History       HistoryConfig
	Metrics       MetricsConfig
	Tracing       TracingConfig
	Watch         WatchConfig
}

type HistoryConfig struct {
	Enabled bool
	// Path is relative to the working directory unless absolute.
	Path string
}

type MetricsConfig struct {
	Textfile string
}

type TracingConfig struct {
	Endpoint string
	Insecure bool
}

type WatchConfig struct {
	Debounce time.Duration
}

func Default() Config {
	return Config{
		Interpreter:   generators.DefaultInterpreter,
		PathStyle:     layout.StyleNative,
		Offsets:       layout.DefaultOffsets(),
		NetworkScript: generators.DefaultNetworkScript,
		SensorScript:  generators.DefaultSensorScript,
		Policy:        generators.PolicyFailFast,
		Preflight:     true,
		History:       HistoryConfig{Enabled: true},
		Tracing:       TracingConfig{Insecure: true},
		Watch:         WatchConfig{Debounce: watch.DefaultDebounce},
	}
}

type fileConfig struct {
	Interpreter string      `toml:"interpreter"`
	PathStyle   string      `toml:"path_style"`
	Policy      string      `toml:"policy"`
	Preflight   bool        `toml:"preflight"`
	ChangedOnly bool        `toml:"changed_only"`
	Steps       []string    `toml:"steps"`
	Env         []string    `toml:"env"`
	LocalConfig string      `toml:"local_config"`
	Network     fileNetwork `toml:"network"`
	Sensor      fileSensor  `toml:"sensor"`
	History     fileHistory `toml:"history"`
	Metrics     fileMetrics `toml:"metrics"`
	Tracing     fileTracing `toml:"tracing"`
	Watch       fileWatch   `toml:"watch"`
}

type fileNetwork struct {
	Dir    string `toml:"dir"`
	Script string `toml:"script"`
	Config string `toml:"config"`
}

type fileSensor struct {
	Dir    string `toml:"dir"`
	Script string `toml:"script"`
}

type fileHistory struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type fileMetrics struct {
	Textfile string `toml:"textfile"`
}

type fileTracing struct {
	Endpoint string `toml:"endpoint"`
	Insecure bool   `toml:"insecure"`
}

type fileWatch struct {
	Debounce string `toml:"debounce"`
}

// Load decodes path over Default. Only keys present in the file override.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("interpreter") {
		cfg.Interpreter = strings.TrimSpace(raw.Interpreter)
	}
	if meta.IsDefined("path_style") {
		style, err := layout.ParseStyle(raw.PathStyle)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.PathStyle = style
	}
	if meta.IsDefined("policy") {
		policy, err := generators.ParsePolicy(raw.Policy)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.Policy = policy
	}
	if meta.IsDefined("preflight") {
		cfg.Preflight = raw.Preflight
	}
	if meta.IsDefined("changed_only") {
		cfg.ChangedOnly = raw.ChangedOnly
	}
	if meta.IsDefined("steps") {
		cfg.Steps = NormalizeSteps(raw.Steps)
	}
	if meta.IsDefined("env") {
		cfg.Env = normalizeList(raw.Env)
	}
	if meta.IsDefined("local_config") {
		cfg.Offsets.LocalConfig = strings.TrimSpace(raw.LocalConfig)
	}

	if meta.IsDefined("network", "dir") {
		cfg.Offsets.NetworkGenDir = layout.SplitOffset(raw.Network.Dir)
	}
	if meta.IsDefined("network", "script") {
		cfg.NetworkScript = strings.TrimSpace(raw.Network.Script)
	}
	if meta.IsDefined("network", "config") {
		cfg.Offsets.CarConfig = layout.SplitOffset(raw.Network.Config)
	}
	if meta.IsDefined("sensor", "dir") {
		cfg.Offsets.SensorGenDir = layout.SplitOffset(raw.Sensor.Dir)
	}
	if meta.IsDefined("sensor", "script") {
		cfg.SensorScript = strings.TrimSpace(raw.Sensor.Script)
	}

	if meta.IsDefined("history", "enabled") {
		cfg.History.Enabled = raw.History.Enabled
	}
	if meta.IsDefined("history", "path") {
		cfg.History.Path = strings.TrimSpace(raw.History.Path)
	}
	if meta.IsDefined("metrics", "textfile") {
		cfg.Metrics.Textfile = strings.TrimSpace(raw.Metrics.Textfile)
	}
	if meta.IsDefined("tracing", "endpoint") {
		cfg.Tracing.Endpoint = strings.TrimSpace(raw.Tracing.Endpoint)
	}
	if meta.IsDefined("tracing", "insecure") {
		cfg.Tracing.Insecure = raw.Tracing.Insecure
	}
	if meta.IsDefined("watch", "debounce") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Watch.Debounce))
		if err != nil {
			return Config{}, fmt.Errorf("config %s: parse watch.debounce: %w", path, err)
		}
		cfg.Watch.Debounce = d
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, except a missing file yields Default.
func LoadOptional(path string) (Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, true, err
	}
	return cfg, true, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Interpreter) == "" {
		return fmt.Errorf("interpreter is required")
	}
	if strings.TrimSpace(cfg.NetworkScript) == "" {
		return fmt.Errorf("network.script is required")
	}
	if strings.TrimSpace(cfg.SensorScript) == "" {
		return fmt.Errorf("sensor.script is required")
	}
	if err := cfg.Offsets.Validate(); err != nil {
		return err
	}
	for _, step := range cfg.Steps {
		switch strings.ToLower(strings.TrimSpace(step)) {
		case generators.StepNetwork, generators.StepSensor:
		default:
			return fmt.Errorf("unknown step %q", step)
		}
	}
	for _, kv := range cfg.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("env entry %q must be KEY=VALUE", kv)
		}
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// HistoryPath resolves the ledger location for workingDir.
func (c Config) HistoryPath(workingDir string) string {
	if c.History.Path == "" {
		return filepath.Join(workingDir, ".genctl", "history.db")
	}
	if filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(workingDir, filepath.FromSlash(c.History.Path))
}

// PlanConfig maps the file settings onto a generator plan.
func (c Config) PlanConfig() generators.PlanConfig {
	return generators.PlanConfig{
		Interpreter:   c.Interpreter,
		NetworkScript: c.NetworkScript,
		SensorScript:  c.SensorScript,
		Only:          c.Steps,
		Env:           c.Env,
	}
}

// NormalizeSteps trims and lowercases step ids; they match case-insensitively.
func NormalizeSteps(in []string) []string {
	out := normalizeList(in)
	for i, id := range out {
		out[i] = strings.ToLower(id)
	}
	return out
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
