package timeline

import (
	"errors"
	"fmt"

	"mactime-go/internal/bodyfile"
)

// ErrInvariant signals a broken contract between decoder and correlator.
// It is raised by panic and surfaces from the sorter's Join.
var ErrInvariant = errors.New("timeline invariant violated")

// Entry is one line of the merged timeline. Entries derived from the same
// record share it.
type Entry struct {
	Flags  Flags
	Record *bodyfile.Record
}

// Bucket is one distinct timestamp of a record together with every
// timestamp kind carrying that value.
type Bucket struct {
	Timestamp int64
	Flags     Flags
}

// Correlate collapses the four timestamps of r into its distinct values,
// evaluated in M, A, C, B order. Each kind joins the first earlier kind with
// an equal raw value, or opens its own slot. The result holds between zero
// and four buckets in slot order.
//
// A record with all four timestamps at zero yields nothing, as does one with
// every timestamp absent. A zero next to an absent field is a real epoch
// timestamp.
func Correlate(r *bodyfile.Record) []Bucket {
	if allZero(r) {
		return nil
	}

	var slots [4]Flags

	if r.MTime != bodyfile.Absent {
		slots[0] |= M
	}

	if r.ATime != bodyfile.Absent {
		if r.ATime == r.MTime {
			slots[0] |= A
		} else {
			slots[1] |= A
		}
	}

	if r.CTime != bodyfile.Absent {
		switch r.CTime {
		case r.MTime:
			slots[0] |= C
		case r.ATime:
			slots[1] |= C
		default:
			slots[2] |= C
		}
	}

	if r.CRTime != bodyfile.Absent {
		switch r.CRTime {
		case r.MTime:
			slots[0] |= B
		case r.ATime:
			slots[1] |= B
		case r.CTime:
			slots[2] |= B
		default:
			slots[3] |= B
		}
	}

	buckets := make([]Bucket, 0, len(slots))
	for _, flags := range slots {
		if flags == None {
			continue
		}

		ts := slotTimestamp(r, flags)
		if ts == bodyfile.Absent {
			panic(fmt.Errorf("%w: flags %s of %q have no timestamp", ErrInvariant, flags, r.Name))
		}

		buckets = append(buckets, Bucket{Timestamp: ts, Flags: flags})
	}

	return buckets
}

// slotTimestamp returns the value of the highest priority kind in flags.
func slotTimestamp(r *bodyfile.Record, flags Flags) int64 {
	switch {
	case flags.Has(M):
		return r.MTime
	case flags.Has(A):
		return r.ATime
	case flags.Has(C):
		return r.CTime
	case flags.Has(B):
		return r.CRTime
	default:
		panic(fmt.Errorf("%w: empty slot of %q", ErrInvariant, r.Name))
	}
}

func allZero(r *bodyfile.Record) bool {
	return r.MTime == 0 && r.ATime == 0 && r.CTime == 0 && r.CRTime == 0
}
