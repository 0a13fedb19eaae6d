package generators

import (
	"testing"

	"github.com/danmuck/genctl/internal/layout"
	"github.com/danmuck/genctl/internal/tools"
)

func TestNewPlanDefaults(t *testing.T) {
	l, err := layout.Resolve("/x/proj", layout.StylePosix, layout.DefaultOffsets())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	plan, err := NewPlan(l, PlanConfig{})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.RunID == "" {
		t.Fatalf("expected run id")
	}
	if plan.Interpreter != DefaultInterpreter {
		t.Fatalf("unexpected interpreter: %q", plan.Interpreter)
	}
	if len(plan.Steps) != 2 || plan.Steps[0].ID != StepNetwork || plan.Steps[1].ID != StepSensor {
		t.Fatalf("unexpected steps: %+v", plan.Steps)
	}
	if got := plan.ScriptPath(plan.Steps[0]); got != "/x/gophercan-lib/network_autogen/autogen.py" {
		t.Fatalf("unexpected script path: %q", got)
	}

	inv := plan.Invocation(plan.Steps[1])
	if got := tools.CommandLine(inv); got != "python gsense_auto_gen.py /x/proj/bms.yaml" {
		t.Fatalf("unexpected command line: %q", got)
	}
	if inv.Dir != "/x/Gopher_Sense" {
		t.Fatalf("unexpected dir: %q", inv.Dir)
	}
}

func TestNewPlanOnlyAndOverrides(t *testing.T) {
	l, err := layout.Resolve("/x/proj", layout.StylePosix, layout.DefaultOffsets())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	plan, err := NewPlan(l, PlanConfig{
		Interpreter:  "python3",
		SensorScript: "gen.py",
		Only:         []string{" Sensor "},
		Env:          []string{"PYTHONUNBUFFERED=1"},
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Steps) != 1 || plan.Steps[0].ID != StepSensor || plan.Steps[0].Script != "gen.py" {
		t.Fatalf("unexpected steps: %+v", plan.Steps)
	}
	if inputs := plan.Inputs(); len(inputs) != 1 || inputs[0] != "/x/proj/bms.yaml" {
		t.Fatalf("unexpected inputs: %+v", inputs)
	}
	inv := plan.Invocation(plan.Steps[0])
	if inv.Name != "python3" || len(inv.Env) != 1 {
		t.Fatalf("unexpected invocation: %+v", inv)
	}

	if _, err := NewPlan(l, PlanConfig{Only: []string{"firmware"}}); err == nil {
		t.Fatalf("expected unknown step error")
	}
}
