package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comalice/safetyx"
)

// Report summarizes a run of a machine.
type Report struct {
	Machine     string              `json:"machine" yaml:"machine"`
	Level       string              `json:"level" yaml:"level"`
	Activations uint64              `json:"activations" yaml:"activations"`
	Cycle       uint64              `json:"cycle" yaml:"cycle"`
	Halted      bool                `json:"halted" yaml:"halted"`
	Diagnostics safetyx.Diagnostics `json:"diagnostics" yaml:"diagnostics"`
	GeneratedAt time.Time           `json:"generatedAt" yaml:"generatedAt"`
}

// Snapshot captures m's current state as a report.
func Snapshot(m *safetyx.Machine) Report {
	r := Report{
		Machine:     m.Name(),
		Activations: m.ActivationCount(),
		Cycle:       m.Cycle(),
		Halted:      m.Halted(),
		Diagnostics: m.Diagnostics(),
		GeneratedAt: time.Now().UTC(),
	}
	if l := m.CurrentLevel(); l != nil {
		r.Level = l.Name()
	}
	return r
}

// Persister stores reports keyed by machine name.
type Persister interface {
	Save(ctx context.Context, report Report) error
	Load(ctx context.Context, machine string) (Report, error)
}

// NewPersister returns a JSON or YAML persister writing under dir.
func NewPersister(dir, format string) (Persister, error) {
	switch format {
	case "json":
		return NewJSONPersister(dir)
	case "yaml", "":
		return NewYAMLPersister(dir)
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// JSONPersister is a file-based persister using JSON serialization.
type JSONPersister struct {
	dir string
}

// NewJSONPersister creates a JSONPersister, ensuring the directory exists.
func NewJSONPersister(dir string) (*JSONPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &JSONPersister{dir: dir}, nil
}

func (p *JSONPersister) Save(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return writeReport(filepath.Join(p.dir, report.Machine+".json"), data)
}

func (p *JSONPersister) Load(ctx context.Context, machine string) (Report, error) {
	data, err := readReport(filepath.Join(p.dir, machine+".json"), machine)
	if err != nil {
		return Report{}, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("json unmarshal: %w", err)
	}
	report.Machine = machine
	return report, nil
}

// YAMLPersister is a file-based persister using YAML serialization.
type YAMLPersister struct {
	dir string
}

// NewYAMLPersister creates a YAMLPersister, ensuring the directory exists.
func NewYAMLPersister(dir string) (*YAMLPersister, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &YAMLPersister{dir: dir}, nil
}

func (p *YAMLPersister) Save(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return writeReport(filepath.Join(p.dir, report.Machine+".yaml"), data)
}

func (p *YAMLPersister) Load(ctx context.Context, machine string) (Report, error) {
	data, err := readReport(filepath.Join(p.dir, machine+".yaml"), machine)
	if err != nil {
		return Report{}, err
	}
	var report Report
	if err := yaml.Unmarshal(data, &report); err != nil {
		return Report{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	report.Machine = machine
	return report, nil
}

func writeReport(fn string, data []byte) error {
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func readReport(fn, machine string) ([]byte, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("machine %q: %w", machine, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", fn, err)
	}
	return data, nil
}
