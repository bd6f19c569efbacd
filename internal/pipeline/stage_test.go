package pipeline

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countTo(n int) SourceFunc[int] {
	return func(ctx context.Context, out chan<- int, _ RunOptions) error {
		for i := range n {
			if !Send(ctx, out, i) {
				return nil
			}
		}
		return nil
	}
}

func itoa(ctx context.Context, in <-chan int, out chan<- string, _ RunOptions) error {
	for {
		v, ok := Receive(ctx, in)
		if !ok {
			return nil
		}
		if !Send(ctx, out, strconv.Itoa(v)) {
			return nil
		}
	}
}

func TestPipeline_SourceFilterSink(t *testing.T) {
	t.Parallel()

	g := NewGroup(context.Background())
	defer g.Close()

	src := NewSource(g, "source", RunOptions{}, countTo(100))
	filter := NewFilter(g, "itoa", src.Receiver(), RunOptions{}, itoa)

	var got []string
	sink := NewSink(g, "collect", filter.Receiver(), RunOptions{}, func(ctx context.Context, in <-chan string, _ RunOptions) error {
		for v := range in {
			got = append(got, v)
		}
		return nil
	})
	sink.Run()

	require.NoError(t, JoinAll(g, src, filter, sink))
	require.Len(t, got, 100)
	assert.Equal(t, "0", got[0])
	assert.Equal(t, "99", got[99])
}

func TestStage_ReceiverTakenTwicePanics(t *testing.T) {
	t.Parallel()

	g := NewGroup(context.Background())
	defer g.Close()

	src := NewSource(g, "source", RunOptions{}, countTo(0))
	_ = src.Receiver()

	assert.Panics(t, func() { _ = src.Receiver() })
	require.NoError(t, src.Join())
}

func TestStage_JoinTwicePanics(t *testing.T) {
	t.Parallel()

	g := NewGroup(context.Background())
	defer g.Close()

	src := NewSource(g, "source", RunOptions{}, countTo(0))
	require.NoError(t, src.Join())

	assert.Panics(t, func() { _ = src.Join() })
}

func TestSink_JoinWithoutRun(t *testing.T) {
	t.Parallel()

	g := NewGroup(context.Background())
	defer g.Close()

	sink := NewSink(g, "idle", make(chan int), RunOptions{}, func(context.Context, <-chan int, RunOptions) error {
		return nil
	})

	err := sink.Join()
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSink_RunTwicePanics(t *testing.T) {
	t.Parallel()

	g := NewGroup(context.Background())
	defer g.Close()

	in := make(chan int)
	close(in)

	sink := NewSink(g, "once", in, RunOptions{}, func(_ context.Context, in <-chan int, _ RunOptions) error {
		for range in {
		}
		return nil
	})
	sink.Run()

	assert.Panics(t, sink.Run)
	require.NoError(t, sink.Join())
}

func TestStage_FailureCancelsGroup(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	g := NewGroup(context.Background())
	defer g.Close()

	src := NewSource(g, "source", RunOptions{}, func(ctx context.Context, out chan<- int, _ RunOptions) error {
		for i := 0; ; i++ {
			if !Send(ctx, out, i) {
				return nil
			}
		}
	})
	failing := NewFilter(g, "failing", src.Receiver(), RunOptions{}, func(ctx context.Context, in <-chan int, _ chan<- int, _ RunOptions) error {
		v, _ := Receive(ctx, in)
		if v == 0 {
			return errBoom
		}
		return nil
	})

	var drained bool
	sink := NewSink(g, "sink", failing.Receiver(), RunOptions{}, func(ctx context.Context, in <-chan int, _ RunOptions) error {
		for range in {
		}
		drained = ctx.Err() == nil
		return nil
	})
	sink.Run()

	err := JoinAll(g, src, failing, sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, drained, "sink should observe the cancelled group")
}

func TestStage_PanicIsRecovered(t *testing.T) {
	t.Parallel()

	errInner := errors.New("inner")

	tests := []struct {
		name  string
		value any
	}{
		{name: "error value", value: errInner},
		{name: "string value", value: "bad state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := NewGroup(context.Background())
			defer g.Close()

			src := NewSource(g, "panicky", RunOptions{}, func(context.Context, chan<- int, RunOptions) error {
				panic(tt.value)
			})

			err := src.Join()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrWorkerPanic)
			if inner, ok := tt.value.(error); ok {
				assert.ErrorIs(t, err, inner)
			}
			assert.ErrorIs(t, g.Err(), ErrWorkerPanic)

			_, ok := <-src.Receiver()
			assert.False(t, ok, "outbound queue should be closed after a panic")
		})
	}
}

func TestRunOptions_LogDefaultsToNop(t *testing.T) {
	var opts RunOptions
	assert.IsType(t, NopLogger{}, opts.Log())
}
