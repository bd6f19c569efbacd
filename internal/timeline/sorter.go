package timeline

import (
	"context"
	"errors"
	"fmt"

	"mactime-go/internal/bodyfile"
	"mactime-go/internal/pipeline"
)

// ErrNotConfigured is returned by Run when the sorter lacks an input or an
// output.
var ErrNotConfigured = errors.New("sorter is missing its receiver or output")

// Stats counts what the sorter did.
type Stats struct {
	Records    int64 // records received
	Degenerate int64 // records without a usable timestamp
	Entries    int64 // entries written
	Dropped    int64 // entries rejected as name collisions
}

// Sorter is the terminal pipeline stage. It correlates every record it
// receives into one Timeline and, once its input is exhausted, drains the
// timeline into its output.
type Sorter struct {
	rx    <-chan *bodyfile.Record
	opts  pipeline.RunOptions
	out   Writer
	sink  *pipeline.Sink[*bodyfile.Record]
	stats Stats
}

func NewSorter() *Sorter {
	return &Sorter{}
}

// WithReceiver sets the record queue to consume.
func (s *Sorter) WithReceiver(rx <-chan *bodyfile.Record, opts pipeline.RunOptions) *Sorter {
	s.rx = rx
	s.opts = opts
	return s
}

// WithOutput sets the writer the timeline is drained into.
func (s *Sorter) WithOutput(w Writer) *Sorter {
	s.out = w
	return s
}

// Run starts the sorter in g. It may be called only once.
func (s *Sorter) Run(g *pipeline.Group) error {
	if s.rx == nil || s.out == nil {
		return ErrNotConfigured
	}
	if s.sink == nil {
		s.sink = pipeline.NewSink(g, "sorter", s.rx, s.opts, s.worker)
	}
	s.sink.Run()
	return nil
}

// Join waits for the sorter to finish draining.
func (s *Sorter) Join() error {
	if s.sink == nil {
		return fmt.Errorf("sorter: %w", pipeline.ErrNotStarted)
	}
	return s.sink.Join()
}

// Stats returns the sorter's counters. Only valid after Join.
func (s *Sorter) Stats() Stats {
	return s.stats
}

func (s *Sorter) worker(ctx context.Context, rx <-chan *bodyfile.Record, opts pipeline.RunOptions) error {
	logger := opts.Log()
	tl := New(opts.KeepNameCollisions)

	for {
		r, ok := pipeline.Receive(ctx, rx)
		if !ok {
			break
		}
		s.stats.Records++

		buckets := Correlate(r)
		if len(buckets) == 0 {
			s.stats.Degenerate++
			logger.Debug("record has no usable timestamp", "name", r.Name)
			continue
		}

		for _, b := range buckets {
			if !tl.Insert(b.Timestamp, Entry{Flags: b.Flags, Record: r}) {
				logger.Debug("name collision, entry dropped", "name", r.Name, "timestamp", b.Timestamp, "macb", b.Flags.String())
			}
		}
	}

	// A closed queue after a failure upstream is not the end of the input.
	if ctx.Err() != nil {
		return fmt.Errorf("timeline not drained: %w", context.Cause(ctx))
	}

	s.stats.Dropped = int64(tl.Dropped())
	s.stats.Entries = int64(tl.Len())
	logger.Debug("draining timeline", "entries", tl.Len(), "dropped", tl.Dropped())

	return tl.Drain(s.out)
}
