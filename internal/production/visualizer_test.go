package production

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefaultVisualizer_ExportDOT(t *testing.T) {
	v := &DefaultVisualizer{}
	m, _ := newLamp(t)
	trigger(t, m, "on")
	cycle(t, m)

	dot := v.ExportDOT(m)
	if !strings.HasPrefix(dot, `digraph "lamp" {`) {
		t.Error("Missing DOT header")
	}
	if !strings.Contains(dot, `"Off" [label="0: Off" tooltip="lamp dark" peripheries=2 penwidth=2];`) {
		t.Errorf("Missing off level node:\n%s", dot)
	}
	if !strings.Contains(dot, `"On" [label="1: On" tooltip="lamp lit" style="rounded,filled" fillcolor=lightgreen];`) {
		t.Errorf("Missing active level highlight:\n%s", dot)
	}
	if !strings.Contains(dot, `"Off" -> "On" [label="on"];`) {
		t.Error("Missing public transition edge")
	}
	if !strings.Contains(dot, `"On" -> "Off" [label="fault" style=dashed];`) {
		t.Error("Missing dashed private edge")
	}
	if strings.Index(dot, `"Off" [`) > strings.Index(dot, `"On" [`) {
		t.Error("expected levels in ordinal order")
	}
}

func TestDefaultVisualizer_ExportJSON(t *testing.T) {
	v := &DefaultVisualizer{}
	m, _ := newLamp(t)

	data, err := v.ExportJSON(m)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	var topo Topology
	if err := json.Unmarshal(data, &topo); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if topo.Machine != "lamp" || topo.Entry != "Off" || topo.Off != "Off" {
		t.Errorf("unexpected header %+v", topo)
	}
	if len(topo.Levels) != 2 || topo.Levels[1].ID != 1 {
		t.Errorf("unexpected levels %+v", topo.Levels)
	}
	if len(topo.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %+v", topo.Edges)
	}
	if e := topo.Edges[2]; e.Label != "fault" || !e.Private {
		t.Errorf("expected private fault edge, got %+v", e)
	}
}
