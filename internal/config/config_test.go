package config_test

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/comalice/safetyx"
	"github.com/comalice/safetyx/configs"
	"github.com/comalice/safetyx/hal"
	"github.com/comalice/safetyx/internal/config"
	"github.com/comalice/safetyx/internal/robot"
)

const minimal = `
name: lamp
period: 1s
inputs:
  - {name: switch, failSafe: false}
outputs: [lamp]
levels:
  - name: Off
    transitions:
      - {event: on, target: On}
    inputs:
      - {input: switch, equals: true, event: on}
    outputs:
      - {output: lamp, value: false}
    action: {kind: shutdown}
  - name: On
    transitions:
      - {event: off, target: Off}
    inputs:
      - {input: switch, equals: false, event: off}
    outputs:
      - {output: lamp, value: true}
entry: Off
off: Off
exit: off
`

func buildRobot(t *testing.T) (*safetyx.Machine, *hal.Sim) {
	t.Helper()
	cfg, err := config.Parse(configs.Robot)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m, err := config.Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sim := hal.NewSim(m.IO())
	sim.SetInputByName("buttonPause", true)
	sim.SetInputByName("buttonMode", true)
	m.SetIO(sim)
	return m, sim
}

func TestParseMinimal(t *testing.T) {
	cfg, err := config.Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Period != time.Second {
		t.Errorf("expected period 1s, got %v", cfg.Period)
	}
	if len(cfg.Levels) != 2 || cfg.Levels[1].Name != "On" {
		t.Fatalf("unexpected levels: %+v", cfg.Levels)
	}
	eq := cfg.Levels[0].Inputs[0].Equals
	if eq == nil || !*eq {
		t.Error("expected equals: true on the Off check")
	}

	m, err := config.Build(cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sim := hal.NewSim(m.IO())
	m.SetIO(sim)

	sim.SetInputByName("switch", true)
	if err := m.RunCycle(); err != nil {
		t.Fatal(err)
	}
	if got := m.CurrentLevel().Name(); got != "On" {
		t.Fatalf("expected On, got %s", got)
	}
	if v, _ := sim.OutputByName("lamp"); !v {
		t.Error("expected lamp on")
	}

	sim.SetInputByName("switch", false)
	if err := m.RequestShutdown(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3 && !m.Halted(); i++ {
		if err := m.RunCycle(); err != nil {
			t.Fatal(err)
		}
	}
	if !m.Halted() {
		t.Errorf("expected halt after shutdown, in %s", m.CurrentLevel().Name())
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", minimal + "colour: red\n"},
		{"missing period", strings.Replace(minimal, "period: 1s", "", 1)},
		{"unknown target", strings.Replace(minimal, "target: On", "target: Nowhere", 1)},
		{"bad visibility", strings.Replace(minimal, "{event: on, target: On}", "{event: on, target: On, visibility: secret}", 1)},
		{"check without equals", strings.Replace(minimal, "{input: switch, equals: true, event: on}", "{input: switch, event: on}", 1)},
		{"unknown output", strings.Replace(minimal, "{output: lamp, value: true}", "{output: horn, value: true}", 1)},
		{"missing off", strings.Replace(minimal, "off: Off\n", "", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := config.Parse([]byte(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateWrapsErrInvalidConfig(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	for _, want := range []string{"name is required", "period must be positive", "entry level is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lamp.yaml")
	if err := os.WriteFile(path, []byte(minimal), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "lamp" {
		t.Errorf("expected name lamp, got %q", cfg.Name)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestBuildUnknownActionKind(t *testing.T) {
	doc := strings.Replace(minimal, "{kind: shutdown}", "{kind: dance}", 1)
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := config.Build(cfg, nil); !errors.Is(err, config.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestBuildTopologyErrorsComeFromEngine(t *testing.T) {
	doc := strings.Replace(minimal, "{event: off, target: Off}", "{event: off, target: On}", 1)
	cfg, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := config.Build(cfg, nil); !errors.Is(err, safetyx.ErrOffLevelUnreachable) {
		t.Fatalf("expected ErrOffLevelUnreachable, got %v", err)
	}
}

func TestRobotConfigMatchesGoDefinition(t *testing.T) {
	fromYAML, _ := buildRobot(t)
	fromGo, err := robot.New(10 * time.Millisecond)
	if err != nil {
		t.Fatalf("robot.New: %v", err)
	}

	yl, gl := fromYAML.Levels(), fromGo.Machine.Levels()
	if len(yl) != len(gl) {
		t.Fatalf("expected %d levels, got %d", len(gl), len(yl))
	}
	for i := range gl {
		if yl[i].Name() != gl[i].Name() {
			t.Fatalf("ordinal %d: expected %s, got %s", i, gl[i].Name(), yl[i].Name())
		}
		want := transitions(gl[i])
		got := transitions(yl[i])
		if len(got) != len(want) {
			t.Errorf("level %s: expected transitions %v, got %v", gl[i].Name(), want, got)
			continue
		}
		for ev, w := range want {
			if got[ev] != w {
				t.Errorf("level %s event %s: expected %s, got %s", gl[i].Name(), ev, w, got[ev])
			}
		}
		if len(yl[i].InputActions()) != len(gl[i].InputActions()) {
			t.Errorf("level %s: input action count differs", gl[i].Name())
		}
		if len(yl[i].OutputActions()) != len(gl[i].OutputActions()) {
			t.Errorf("level %s: output action count differs", gl[i].Name())
		}
	}
}

func transitions(l *safetyx.Level) map[string]string {
	out := make(map[string]string)
	for _, t := range l.Transitions() {
		out[t.Event.Name()] = t.Target.Name() + "/" + t.Visibility.String()
	}
	return out
}

func TestRobotConfigTimedWaits(t *testing.T) {
	m, _ := buildRobot(t)
	on, _ := m.Event("doSystemOn")
	if err := m.TriggerEvent(on); err != nil {
		t.Fatal(err)
	}
	if err := m.RunCycle(); err != nil {
		t.Fatal(err)
	}
	if got := m.CurrentLevel().Name(); got != "SystemOn" {
		t.Fatalf("expected SystemOn, got %s", got)
	}

	// 1s at 10ms per cycle: 100 cycles to count, one more to trigger.
	n := 0
	for m.CurrentLevel().Name() == "SystemOn" && n < 500 {
		if err := m.RunCycle(); err != nil {
			t.Fatal(err)
		}
		n++
	}
	if m.CurrentLevel().Name() != "MotorPowerOn" || n != 101 {
		t.Errorf("expected MotorPowerOn after 101 cycles, got %s after %d", m.CurrentLevel().Name(), n)
	}
}

func TestRegistry(t *testing.T) {
	reg := config.NewRegistry(nil)
	kinds := reg.Kinds()
	want := []string{"none", "shutdown", "start_cycle_then", "stop_cycle_then", "trigger", "trigger_after"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Errorf("expected kinds %v, got %v", want, kinds)
	}

	noop := func(config.ActionConfig, config.ActionEnv) (safetyx.LevelAction, error) { return nil, nil }
	if err := reg.Register("noop", noop); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("noop", noop); err == nil {
		t.Error("expected error registering a kind twice")
	}

	env := config.ActionEnv{Level: "L", Period: time.Second, Event: safetyx.NewEvent}
	if a, err := reg.New(config.ActionConfig{Kind: "none"}, env); err != nil || a != nil {
		t.Errorf("expected no action for none, got %v %v", a, err)
	}
	if _, err := reg.New(config.ActionConfig{Kind: "trigger"}, env); err == nil {
		t.Error("expected error for trigger without event")
	}
	if _, err := reg.New(config.ActionConfig{Kind: "trigger_after", Event: "x"}, env); err == nil {
		t.Error("expected error for trigger_after without after")
	}
}

func TestLoggedActionLogsOnEntry(t *testing.T) {
	var buf bytes.Buffer
	reg := config.NewRegistry(log.New(&buf, "", 0))
	cfg, err := config.Parse([]byte(minimal))
	if err != nil {
		t.Fatal(err)
	}
	m, err := config.Build(cfg, reg)
	if err != nil {
		t.Fatal(err)
	}
	m.SetIO(hal.NewSim(m.IO()))

	for i := 0; i < 3; i++ {
		if err := m.RunCycle(); err != nil {
			t.Fatal(err)
		}
	}
	if got := strings.Count(buf.String(), "LOG: Executing shutdown action"); got != 1 {
		t.Errorf("expected one entry log line, got %d:\n%s", got, buf.String())
	}
}

func TestParseEnvDefaults(t *testing.T) {
	s, err := config.ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if s.MaxCycles != 0 || s.Tick != 0 {
		t.Errorf("expected zero defaults, got %+v", s)
	}
}

func TestParseEnvValues(t *testing.T) {
	t.Setenv("SAFETYX_TICK", "20ms")
	t.Setenv("SAFETYX_CONFIG", "/etc/safetyx/robot.yaml")
	s, err := config.ParseEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if s.Tick != 20*time.Millisecond || s.Config != "/etc/safetyx/robot.yaml" {
		t.Errorf("unexpected settings %+v", s)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("SAFETYX_TICK", "fast")
	_, err := config.ParseEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
