package production

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/comalice/safetyx"
)

// DefaultVisualizer renders a machine's level graph.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source for the level graph. Levels appear
// in ordinal order; the current level is filled, the off level drawn with a
// double border and private transitions dashed.
func (v *DefaultVisualizer) ExportDOT(m *safetyx.Machine) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %q {\n", m.Name())
	buf.WriteString(`  rankdir=LR;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)

	current := m.CurrentLevel()
	for _, l := range m.Levels() {
		renderLevel(&buf, l, l == current, l == m.OffLevel(), l == m.EntryLevel())
	}
	for _, e := range collectEdges(m) {
		style := ""
		if e.Private {
			style = " style=dashed"
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q%s];\n", e.From, e.To, e.Label, style)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func renderLevel(buf *bytes.Buffer, l *safetyx.Level, active, off, entry bool) {
	label := fmt.Sprintf("%d: %s", l.ID(), l.Name())
	attrs := ""
	if off {
		attrs += " peripheries=2"
	}
	if entry {
		attrs += " penwidth=2"
	}
	if active {
		attrs += " style=\"rounded,filled\" fillcolor=lightgreen"
	}
	fmt.Fprintf(buf, "  %q [label=%q tooltip=%q%s];\n", l.Name(), label, l.Description(), attrs)
}

// Edge represents a transition edge.
type Edge struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Label   string `json:"event"`
	Private bool   `json:"private,omitempty"`
}

// collectEdges collects all transitions in level and registration order.
func collectEdges(m *safetyx.Machine) []Edge {
	var edges []Edge
	for _, l := range m.Levels() {
		for _, t := range l.Transitions() {
			edges = append(edges, Edge{
				From:    l.Name(),
				To:      t.Target.Name(),
				Label:   t.Event.Name(),
				Private: t.Visibility == safetyx.Private,
			})
		}
	}
	return edges
}

// Topology is the JSON form of a level graph.
type Topology struct {
	Machine string          `json:"machine"`
	Entry   string          `json:"entry,omitempty"`
	Off     string          `json:"off,omitempty"`
	Levels  []TopologyLevel `json:"levels"`
	Edges   []Edge          `json:"edges"`
}

// TopologyLevel describes one level.
type TopologyLevel struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ExportJSON serializes the level graph to JSON.
func (v *DefaultVisualizer) ExportJSON(m *safetyx.Machine) ([]byte, error) {
	topo := Topology{Machine: m.Name(), Edges: collectEdges(m)}
	if l := m.EntryLevel(); l != nil {
		topo.Entry = l.Name()
	}
	if l := m.OffLevel(); l != nil {
		topo.Off = l.Name()
	}
	for _, l := range m.Levels() {
		topo.Levels = append(topo.Levels, TopologyLevel{
			ID:          int(l.ID()),
			Name:        l.Name(),
			Description: l.Description(),
		})
	}
	return json.MarshalIndent(topo, "", "  ")
}
