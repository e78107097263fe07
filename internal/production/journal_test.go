package production

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/comalice/safetyx"
)

// runLampToHalt switches the lamp on, requests shutdown and cycles until
// the off level halts, returning every record observed.
func runLampToHalt(t *testing.T) []safetyx.Record {
	t.Helper()
	var records []safetyx.Record
	m, _ := newLamp(t, safetyx.WithObserver(safetyx.ObserverFunc(func(r safetyx.Record) {
		records = append(records, r)
	})))

	trigger(t, m, "on")
	cycle(t, m)
	if err := m.RequestShutdown(); err != nil {
		t.Fatalf("Failed to request shutdown: %v", err)
	}
	cycle(t, m)
	cycle(t, m)
	if !m.Halted() {
		t.Fatalf("expected halt, in %s", m.CurrentLevel().Name())
	}
	return records
}

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"), "lamp")
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordsRun(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	for _, r := range runLampToHalt(t) {
		if err := j.Consume(ctx, r); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
	}

	entries, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	wantKinds := []string{"halted", "transition", "shutdown_requested", "transition"}
	if len(entries) != len(wantKinds) {
		t.Fatalf("expected %d entries, got %d: %+v", len(wantKinds), len(entries), entries)
	}
	for i, want := range wantKinds {
		if entries[i].Kind != want {
			t.Errorf("entry %d: expected %s, got %s", i, want, entries[i].Kind)
		}
	}

	last := entries[1]
	if last.Level != "On" || last.Target != "Off" || last.Event != "off" || last.Origin != "exit" {
		t.Errorf("unexpected shutdown transition %+v", last)
	}
	if last.Cycle != 2 || last.Machine != "lamp" || last.CreatedAt.IsZero() {
		t.Errorf("unexpected metadata %+v", last)
	}
	if entries[0].Origin != "" {
		t.Errorf("expected no origin on halt, got %q", entries[0].Origin)
	}

	counts, err := j.CountByKind(ctx)
	if err != nil {
		t.Fatalf("CountByKind failed: %v", err)
	}
	if counts["transition"] != 2 || counts["halted"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestJournal_Limit(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := j.Consume(ctx, safetyx.Record{Kind: safetyx.RecordSuperseded, Cycle: uint64(i)}); err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
	}
	entries, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Cycle != 5 || entries[1].Cycle != 4 {
		t.Errorf("expected cycles 5 and 4, got %+v", entries)
	}
	if _, err := j.Recent(ctx, 0); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestJournal_SeparatesMachines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	a, err := OpenJournal(path, "a")
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer a.Close()
	b, err := OpenJournal(path, "b")
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer b.Close()

	if err := a.Consume(ctx, safetyx.Record{Kind: safetyx.RecordHalted}); err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	entries, err := b.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries for b, got %+v", entries)
	}
}

func TestJournal_Errors(t *testing.T) {
	if _, err := OpenJournal("  ", "lamp"); err == nil {
		t.Error("expected error for empty path")
	}

	var nilJournal *Journal
	if err := nilJournal.Close(); err != nil {
		t.Errorf("expected nil Close on nil journal, got %v", err)
	}
	if err := nilJournal.Consume(context.Background(), safetyx.Record{}); err == nil {
		t.Error("expected error consuming into nil journal")
	}

	j := openJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Consume(ctx, safetyx.Record{}); err == nil {
		t.Error("expected error on cancelled context")
	}
}
