package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mactime-go/internal/bodyfile"
)

func record(m, a, c, b int64) *bodyfile.Record {
	return bodyfile.NewRecord().WithName("/x").WithMTime(m).WithATime(a).WithCTime(c).WithCRTime(b)
}

func TestCorrelate(t *testing.T) {
	tests := []struct {
		name   string
		record *bodyfile.Record
		want   []Bucket
	}{
		{
			name:   "all equal",
			record: record(7, 7, 7, 7),
			want:   []Bucket{{Timestamp: 7, Flags: M | A | C | B}},
		},
		{
			name:   "pairwise distinct",
			record: record(1, 2, 3, 4),
			want: []Bucket{
				{Timestamp: 1, Flags: M},
				{Timestamp: 2, Flags: A},
				{Timestamp: 3, Flags: C},
				{Timestamp: 4, Flags: B},
			},
		},
		{
			name:   "m and a shared, c apart, no crtime",
			record: record(100, 100, 200, -1),
			want: []Bucket{
				{Timestamp: 100, Flags: M | A},
				{Timestamp: 200, Flags: C},
			},
		},
		{
			name:   "c joins a",
			record: record(1, 2, 2, -1),
			want: []Bucket{
				{Timestamp: 1, Flags: M},
				{Timestamp: 2, Flags: A | C},
			},
		},
		{
			name:   "b joins c",
			record: record(1, 2, 3, 3),
			want: []Bucket{
				{Timestamp: 1, Flags: M},
				{Timestamp: 2, Flags: A},
				{Timestamp: 3, Flags: C | B},
			},
		},
		{
			name:   "b joins a",
			record: record(1, 2, 3, 2),
			want: []Bucket{
				{Timestamp: 1, Flags: M},
				{Timestamp: 2, Flags: A | B},
				{Timestamp: 3, Flags: C},
			},
		},
		{
			name:   "only crtime",
			record: record(-1, -1, -1, 9),
			want:   []Bucket{{Timestamp: 9, Flags: B}},
		},
		{
			name:   "mtime absent, others equal",
			record: record(-1, 5, 5, 5),
			want:   []Bucket{{Timestamp: 5, Flags: A | C | B}},
		},
		{
			name:   "zero kept when another timestamp is usable",
			record: record(0, 5, -1, -1),
			want: []Bucket{
				{Timestamp: 0, Flags: M},
				{Timestamp: 5, Flags: A},
			},
		},
		{
			name:   "all absent",
			record: record(-1, -1, -1, -1),
			want:   nil,
		},
		{
			name:   "all zero",
			record: record(0, 0, 0, 0),
			want:   nil,
		},
		{
			name:   "zero mtime, rest absent",
			record: record(0, -1, -1, -1),
			want:   []Bucket{{Timestamp: 0, Flags: M}},
		},
		{
			name:   "mix of absent and zero",
			record: record(0, -1, 0, -1),
			want:   []Bucket{{Timestamp: 0, Flags: M | C}},
		},
		{
			name:   "zero crtime, rest absent",
			record: record(-1, -1, -1, 0),
			want:   []Bucket{{Timestamp: 0, Flags: B}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Correlate(tt.record)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCorrelate_BucketsAreDistinctAndPresent(t *testing.T) {
	values := []int64{-1, 0, 1, 2}
	for _, m := range values {
		for _, a := range values {
			for _, c := range values {
				for _, b := range values {
					r := record(m, a, c, b)
					buckets := Correlate(r)
					require.LessOrEqual(t, len(buckets), 4)

					seen := make(map[int64]bool)
					var all Flags
					for _, bk := range buckets {
						assert.NotEqual(t, bodyfile.Absent, bk.Timestamp, "record %s", r)
						assert.False(t, seen[bk.Timestamp], "duplicate timestamp in %s", r)
						assert.NotEqual(t, None, bk.Flags)
						assert.Zero(t, all&bk.Flags, "flag set twice in %s", r)
						seen[bk.Timestamp] = true
						all |= bk.Flags
					}

					allAbsent := m == -1 && a == -1 && c == -1 && b == -1
					zeros := m == 0 && a == 0 && c == 0 && b == 0
					assert.Equal(t, allAbsent || zeros, len(buckets) == 0, "record %s", r)

					if len(buckets) > 0 {
						for flag, ts := range map[Flags]int64{M: m, A: a, C: c, B: b} {
							assert.Equal(t, ts != bodyfile.Absent, all.Has(flag), "flag %s in %s", flag, r)
						}
					}
				}
			}
		}
	}
}

func TestFlags_String(t *testing.T) {
	tests := []struct {
		flags Flags
		want  string
	}{
		{flags: None, want: "...."},
		{flags: M, want: "m..."},
		{flags: A, want: ".a.."},
		{flags: C, want: "..c."},
		{flags: B, want: "...b"},
		{flags: M | C, want: "m.c."},
		{flags: M | A | C | B, want: "macb"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.flags.String())
	}
}
