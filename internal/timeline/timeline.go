package timeline

import (
	"fmt"
	"slices"
	"strings"
)

// Writer receives the drained timeline, one entry at a time, in ascending
// timestamp order and ascending name order within a timestamp.
type Writer interface {
	Write(timestamp int64, e Entry) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(timestamp int64, e Entry) error

func (f WriterFunc) Write(timestamp int64, e Entry) error {
	return f(timestamp, e)
}

type bucket struct {
	entries []Entry
	names   map[string]struct{}
}

// Timeline merges the entries of every record, keyed by timestamp. Within a
// timestamp entries are unique by name unless collisions are kept.
type Timeline struct {
	buckets        map[int64]*bucket
	keepCollisions bool
	size           int
	dropped        int
}

// New returns an empty Timeline. With keepNameCollisions set, entries that
// share a timestamp and a name are all kept, in arrival order.
func New(keepNameCollisions bool) *Timeline {
	return &Timeline{
		buckets:        make(map[int64]*bucket),
		keepCollisions: keepNameCollisions,
	}
}

// Insert adds e under timestamp. It reports false if e was dropped because an
// entry with the same name already occupies that timestamp.
func (t *Timeline) Insert(timestamp int64, e Entry) bool {
	b, ok := t.buckets[timestamp]
	if !ok {
		b = &bucket{}
		if !t.keepCollisions {
			b.names = make(map[string]struct{})
		}
		t.buckets[timestamp] = b
	}

	if b.names != nil {
		if _, seen := b.names[e.Record.Name]; seen {
			t.dropped++
			return false
		}
		b.names[e.Record.Name] = struct{}{}
	}

	b.entries = append(b.entries, e)
	t.size++
	return true
}

// Len returns the number of entries held.
func (t *Timeline) Len() int {
	return t.size
}

// Dropped returns the number of entries rejected as name collisions.
func (t *Timeline) Dropped() int {
	return t.dropped
}

// Drain hands every entry to w in order and empties the timeline. It stops
// at the first write error.
func (t *Timeline) Drain(w Writer) error {
	keys := make([]int64, 0, len(t.buckets))
	for ts := range t.buckets {
		keys = append(keys, ts)
	}
	slices.Sort(keys)

	for _, ts := range keys {
		entries := t.buckets[ts].entries
		slices.SortStableFunc(entries, func(a, b Entry) int {
			return strings.Compare(a.Record.Name, b.Record.Name)
		})

		for _, e := range entries {
			if err := w.Write(ts, e); err != nil {
				return fmt.Errorf("writing entry at %d: %w", ts, err)
			}
		}
	}

	t.buckets = make(map[int64]*bucket)
	t.size = 0
	return nil
}
