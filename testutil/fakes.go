package testutil

import (
	"sync"

	"github.com/comalice/safetyx"
)

// FakeCycle records StartCycle/StopCycle calls.
type FakeCycle struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func (f *FakeCycle) StartCycle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.starts++
}

func (f *FakeCycle) StopCycle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stops++
}

func (f *FakeCycle) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// Calls returns the number of StartCycle and StopCycle calls.
func (f *FakeCycle) Calls() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// FakeExecutor counts Stop calls.
type FakeExecutor struct {
	mu    sync.Mutex
	stops int
}

func (f *FakeExecutor) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *FakeExecutor) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Recorder is an Observer keeping every record in order.
type Recorder struct {
	mu      sync.Mutex
	records []safetyx.Record
}

func (r *Recorder) Observe(rec safetyx.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of the records seen so far.
func (r *Recorder) Records() []safetyx.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]safetyx.Record(nil), r.records...)
}

// Count returns how many records of kind were seen.
func (r *Recorder) Count(kind safetyx.RecordKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// Path returns the level names visited through transitions, starting with
// the source of the first one.
func (r *Recorder) Path() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var path []string
	for _, rec := range r.records {
		if rec.Kind != safetyx.RecordTransition {
			continue
		}
		if len(path) == 0 {
			path = append(path, rec.Level)
		}
		path = append(path, rec.Target)
	}
	return path
}
