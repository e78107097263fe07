// Package production connects a running safety machine to the outside world:
// record publishing, a transition journal, trace spans, graph export and run
// reports.
package production

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/comalice/safetyx"
)

// ChannelPublisher is a safetyx.Observer that forwards records to a channel.
// Observe never blocks: records are dropped when the channel is full.
type ChannelPublisher struct {
	mu      sync.RWMutex
	ch      chan safetyx.Record
	closed  bool
	dropped atomic.Uint64
}

// NewChannelPublisher creates a publisher with a buffer of size records.
func NewChannelPublisher(size int) *ChannelPublisher {
	if size < 0 {
		size = 0
	}
	return &ChannelPublisher{ch: make(chan safetyx.Record, size)}
}

// Records is the receiving side. It is closed by Close.
func (p *ChannelPublisher) Records() <-chan safetyx.Record { return p.ch }

// Observe implements safetyx.Observer.
func (p *ChannelPublisher) Observe(r safetyx.Record) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.ch <- r:
	default:
		p.dropped.Add(1) // Non-blocking drop
	}
}

// Dropped reports how many records were lost to backpressure or after Close.
func (p *ChannelPublisher) Dropped() uint64 { return p.dropped.Load() }

// Close closes the channel. Later records are dropped.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

// Sink consumes published records outside the cycle.
type Sink interface {
	Consume(ctx context.Context, r safetyx.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r safetyx.Record) error

func (f SinkFunc) Consume(ctx context.Context, r safetyx.Record) error { return f(ctx, r) }

// Pump hands every record from in to each sink in order until in is closed
// or ctx is done. Sink errors are logged and do not stop the pump.
func Pump(ctx context.Context, in <-chan safetyx.Record, logger *log.Logger, sinks ...Sink) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-in:
			if !ok {
				return
			}
			for _, s := range sinks {
				if err := s.Consume(ctx, r); err != nil && logger != nil {
					logger.Printf("sink: %s record at cycle %d: %v", r.Kind, r.Cycle, err)
				}
			}
		}
	}
}
