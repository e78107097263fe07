package hal

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const debounceDefault = 100 * time.Millisecond

// inputFile is the on-disk format:
//
//	inputs:
//	  buttonPause: true
//	  buttonMode: true
type inputFile struct {
	Inputs map[string]bool `yaml:"inputs"`
}

// FileInputs feeds a Sim from a YAML file and re-applies it whenever the file
// changes. It lets a bench operator toggle inputs with an editor.
type FileInputs struct {
	path     string
	sim      *Sim
	logger   *log.Logger
	debounce time.Duration
}

// NewFileInputs creates a loader for path. A nil logger logs to stderr.
func NewFileInputs(path string, sim *Sim, logger *log.Logger) *FileInputs {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &FileInputs{path: path, sim: sim, logger: logger, debounce: debounceDefault}
}

// Load reads the file once and applies every input in it.
func (f *FileInputs) Load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("read inputs %s: %w", f.path, err)
	}
	var doc inputFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse inputs %s: %w", f.path, err)
	}

	names := make([]string, 0, len(doc.Inputs))
	for name := range doc.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.sim.SetInputByName(name, doc.Inputs[name]); err != nil {
			return fmt.Errorf("inputs %s: %w", f.path, err)
		}
	}
	return nil
}

// Run watches the file and reloads it after writes. Blocks until ctx is
// cancelled.
func (f *FileInputs) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so editors that replace the file are seen too.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", f.path, err)
	}
	target := filepath.Clean(f.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(f.debounce, func() {
					if err := f.Load(); err != nil {
						f.logger.Printf("hal: input reload failed: %v", err)
						return
					}
					f.logger.Printf("hal: inputs reloaded from %s", f.path)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Printf("hal: file watcher error: %v", err)
		}
	}
}
