package generators

import (
	"fmt"
	"strings"

	"github.com/danmuck/genctl/internal/layout"
	"github.com/danmuck/genctl/internal/tools"
	"github.com/google/uuid"
)

const (
	StepNetwork = "network"
	StepSensor  = "sensor"
)

const (
	DefaultInterpreter   = "python"
	DefaultNetworkScript = "autogen.py"
	DefaultSensorScript  = "gsense_auto_gen.py"
)

// Generator is one external tool invocation: <interpreter> <Script> <Input>
// run from Dir.
type Generator struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Dir    string `json:"dir"`
	Script string `json:"script"`
	Input  string `json:"input"`
}

// PlanConfig selects the interpreter, scripts and steps of a plan.
type PlanConfig struct {
	Interpreter   string
	NetworkScript string
	SensorScript  string
	// Only restricts the plan to these step ids; empty means all.
	Only []string
	// Env is passed to every generator on top of the inherited environment.
	Env []string
}

func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Interpreter:   DefaultInterpreter,
		NetworkScript: DefaultNetworkScript,
		SensorScript:  DefaultSensorScript,
	}
}

// Plan is an ordered set of generator steps for one layout.
type Plan struct {
	RunID       string        `json:"run_id"`
	Layout      layout.Layout `json:"layout"`
	Interpreter string        `json:"interpreter"`
	Env         []string      `json:"env,omitempty"`
	Steps       []Generator   `json:"steps"`
}

// NewPlan builds the network step followed by the sensor step.
func NewPlan(l layout.Layout, cfg PlanConfig) (Plan, error) {
	def := DefaultPlanConfig()
	interpreter := strings.TrimSpace(cfg.Interpreter)
	if interpreter == "" {
		interpreter = def.Interpreter
	}
	networkScript := strings.TrimSpace(cfg.NetworkScript)
	if networkScript == "" {
		networkScript = def.NetworkScript
	}
	sensorScript := strings.TrimSpace(cfg.SensorScript)
	if sensorScript == "" {
		sensorScript = def.SensorScript
	}

	all := []Generator{
		{
			ID:     StepNetwork,
			Name:   "CAN network autogen",
			Dir:    l.NetworkGenDir,
			Script: networkScript,
			Input:  l.CarConfigPath,
		},
		{
			ID:     StepSensor,
			Name:   "sensor config autogen",
			Dir:    l.SensorGenDir,
			Script: sensorScript,
			Input:  l.LocalConfigPath,
		},
	}

	steps, err := selectSteps(all, cfg.Only)
	if err != nil {
		return Plan{}, err
	}

	return Plan{
		RunID:       uuid.NewString(),
		Layout:      l,
		Interpreter: interpreter,
		Env:         append([]string(nil), cfg.Env...),
		Steps:       steps,
	}, nil
}

func selectSteps(all []Generator, only []string) ([]Generator, error) {
	if len(only) == 0 {
		return all, nil
	}
	want := make(map[string]struct{}, len(only))
	for _, id := range only {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if id != StepNetwork && id != StepSensor {
			return nil, fmt.Errorf("generators: unknown step %q", id)
		}
		want[id] = struct{}{}
	}
	out := make([]Generator, 0, len(all))
	for _, g := range all {
		if _, ok := want[g.ID]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// Invocation returns the command for step g under plan p.
func (p Plan) Invocation(g Generator) tools.Invocation {
	return tools.Invocation{
		Dir:  g.Dir,
		Name: p.Interpreter,
		Args: []string{g.Script, g.Input},
		Env:  p.Env,
	}
}

// ScriptPath is the generator script location inside its directory.
func (p Plan) ScriptPath(g Generator) string {
	return p.Layout.Style.Join(g.Dir, g.Script)
}

// Inputs lists every step input path in order.
func (p Plan) Inputs() []string {
	out := make([]string, 0, len(p.Steps))
	for _, g := range p.Steps {
		out = append(out, g.Input)
	}
	return out
}
