package timeline

// Flags is the set of timestamp kinds that share one timeline entry's
// timestamp.
type Flags uint8

const (
	M Flags = 1 << iota // modified
	A                   // accessed
	C                   // changed (metadata)
	B                   // born (created)
)

const None Flags = 0

// Has reports whether every flag in other is set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// String renders f as a four-character mask such as "m.c.".
func (f Flags) String() string {
	mask := [4]byte{'.', '.', '.', '.'}
	for i, flag := range [4]Flags{M, A, C, B} {
		if f.Has(flag) {
			mask[i] = "macb"[i]
		}
	}
	return string(mask[:])
}
