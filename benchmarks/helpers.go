// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"

	"github.com/comalice/safetyx"
	"github.com/comalice/safetyx/hal"
)

func levelName(i int) string { return fmt.Sprintf("L%d", i) }

// GenLadder creates n levels where "up" climbs one level and "down" drops
// every level above L0 straight back to L0, the off level. Each level drives
// one output.
func GenLadder(n int) (*safetyx.Machine, *hal.Sim, error) {
	if n < 2 {
		n = 2
	}
	b := safetyx.NewBuilder(fmt.Sprintf("ladder_%d", n))
	b.Output("out")
	for i := 0; i < n; i++ {
		lb := b.Level(levelName(i), "").Set("out", i%2 == 1)
		if i < n-1 {
			lb.On("up", levelName(i+1), safetyx.Public)
		}
	}
	b.Between(levelName(1), levelName(n-1), "down", levelName(0), safetyx.Public)
	b.Entry(levelName(0)).Off(levelName(0))

	m, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	sim := hal.NewSim(m.IO())
	m.SetIO(sim)
	return m, sim, nil
}

// GenWideChecks creates an Off level and a Run level watching n inputs, none
// of which fire while every input reads true.
func GenWideChecks(n int) (*safetyx.Machine, *hal.Sim, error) {
	if n < 1 {
		n = 1
	}
	b := safetyx.NewBuilder(fmt.Sprintf("wide_%d", n))
	b.Level("Off", "").On("start", "Run", safetyx.Public)
	run := b.Level("Run", "").On("trip", "Off", safetyx.Private)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("in%d", i)
		b.Input(name, false)
		run.Check(name, false, "trip")
	}
	b.Entry("Off").Off("Off")

	m, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	sim := hal.NewSim(m.IO())
	for i := 0; i < n; i++ {
		if err := sim.SetInputByName(fmt.Sprintf("in%d", i), true); err != nil {
			return nil, nil, err
		}
	}
	m.SetIO(sim)
	return m, sim, nil
}
