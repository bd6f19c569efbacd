package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrWorkerPanic is returned from Join when a stage's worker panicked.
	ErrWorkerPanic = errors.New("pipeline worker panicked")

	// ErrNotStarted is returned from Join on a sink that was never run.
	ErrNotStarted = errors.New("pipeline stage was never started")
)

// Joinable is implemented by every stage. Join blocks until the stage's
// background worker has finished and returns its outcome. It must be called
// exactly once; a second call panics.
type Joinable interface {
	Join() error
}

// Group ties the stages of one pipeline run together. The first stage to
// fail cancels the group's context with its error, which stops every other
// stage at its next send or receive.
type Group struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// NewGroup returns a Group derived from parent.
func NewGroup(parent context.Context) *Group {
	ctx, cancel := context.WithCancelCause(parent)
	return &Group{ctx: ctx, cancel: cancel}
}

// Context returns the context shared by the group's stages.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Fail cancels the group with err. Only the first failure is kept.
func (g *Group) Fail(err error) {
	g.cancel(err)
}

// Err returns the first failure reported to the group, or nil.
func (g *Group) Err() error {
	if g.ctx.Err() == nil {
		return nil
	}
	return context.Cause(g.ctx)
}

// Close releases the group's context. Call it once every stage is joined.
func (g *Group) Close() {
	g.cancel(nil)
}

type (
	// SourceFunc produces items on out until its input is exhausted.
	SourceFunc[To any] func(ctx context.Context, out chan<- To, opts RunOptions) error

	// FilterFunc turns items from in into items on out.
	FilterFunc[From, To any] func(ctx context.Context, in <-chan From, out chan<- To, opts RunOptions) error

	// SinkFunc consumes every item from in.
	SinkFunc[From any] func(ctx context.Context, in <-chan From, opts RunOptions) error
)

// worker runs one background task and records its outcome.
type worker struct {
	name   string
	done   chan struct{}
	err    error
	joined atomic.Bool
}

// start runs task in the background. Failures are reported to the group
// before onExit runs, so a downstream stage that sees its queue closed can
// already tell a failed upstream from a finished one.
func (w *worker) start(g *Group, task func() error, onExit func()) {
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		if onExit != nil {
			defer onExit()
		}
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok {
					w.err = fmt.Errorf("%w: %s: %w", ErrWorkerPanic, w.name, err)
				} else {
					w.err = fmt.Errorf("%w: %s: %v", ErrWorkerPanic, w.name, r)
				}
				g.Fail(w.err)
			}
		}()

		if err := task(); err != nil {
			w.err = fmt.Errorf("%s: %w", w.name, err)
			g.Fail(w.err)
		}
	}()
}

// Join waits for the worker and returns its outcome.
func (w *worker) Join() error {
	if w.joined.Swap(true) {
		panic(fmt.Sprintf("pipeline: stage %q joined twice", w.name))
	}
	if w.done == nil {
		return fmt.Errorf("%s: %w", w.name, ErrNotStarted)
	}

	<-w.done
	return w.err
}

// Stage is a running producer with an outbound queue.
type Stage[T any] struct {
	worker
	rx    <-chan T
	taken atomic.Bool
}

// Receiver transfers the stage's outbound queue to the caller. It may be
// called only once.
func (s *Stage[T]) Receiver() <-chan T {
	if s.taken.Swap(true) {
		panic(fmt.Sprintf("pipeline: receiver of stage %q already taken", s.name))
	}
	return s.rx
}

// NewSource starts fn in the background and returns its stage. The outbound
// queue is closed when fn returns.
func NewSource[To any](g *Group, name string, opts RunOptions, fn SourceFunc[To]) *Stage[To] {
	tx, rx := NewQueue[To](g.Context())
	s := &Stage[To]{worker: worker{name: name}, rx: rx}

	s.start(g, func() error {
		return fn(g.Context(), tx, opts)
	}, func() { close(tx) })

	return s
}

// NewFilter starts fn in the background, consuming previous, and returns its
// stage. The outbound queue is closed when fn returns.
func NewFilter[From, To any](g *Group, name string, previous <-chan From, opts RunOptions, fn FilterFunc[From, To]) *Stage[To] {
	tx, rx := NewQueue[To](g.Context())
	s := &Stage[To]{worker: worker{name: name}, rx: rx}

	s.start(g, func() error {
		return fn(g.Context(), previous, tx, opts)
	}, func() { close(tx) })

	return s
}

// Sink is a terminal stage. Unlike sources and filters it does not start
// until Run is called, so that its output can be configured first.
type Sink[From any] struct {
	worker
	group    *Group
	previous <-chan From
	opts     RunOptions
	fn       SinkFunc[From]
	started  atomic.Bool
}

// NewSink prepares a terminal stage consuming previous.
func NewSink[From any](g *Group, name string, previous <-chan From, opts RunOptions, fn SinkFunc[From]) *Sink[From] {
	return &Sink[From]{
		worker:   worker{name: name},
		group:    g,
		previous: previous,
		opts:     opts,
		fn:       fn,
	}
}

// Run starts the sink's worker. It may be called only once.
func (s *Sink[From]) Run() {
	if s.started.Swap(true) {
		panic(fmt.Sprintf("pipeline: stage %q started twice", s.name))
	}

	s.start(s.group, func() error {
		return s.fn(s.group.Context(), s.previous, s.opts)
	}, nil)
}

// JoinAll joins every stage in order and returns the first failure reported
// to the group, falling back to the first non-nil join error.
func JoinAll(g *Group, stages ...Joinable) error {
	var firstErr error
	for _, s := range stages {
		if err := s.Join(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := g.Err(); err != nil {
		return err
	}
	return firstErr
}
