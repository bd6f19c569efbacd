package bodyfile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Absent marks a timestamp that does not apply to a record.
const Absent int64 = -1

// fieldCount is the number of pipe-separated fields in a bodyfile 3.x line:
//
//	checksum|name|inode|mode|uid|gid|size|atime|mtime|ctime|crtime
const fieldCount = 11

// ErrMalformedLine is wrapped by every error returned from Parse.
var ErrMalformedLine = errors.New("malformed bodyfile line")

// Record is one parsed bodyfile line. It is created once by the decoder and
// shared read-only by every timeline entry derived from it.
type Record struct {
	Checksum string
	Name     string
	Inode    string
	Mode     string
	UID      uint64
	GID      uint64
	Size     uint64
	ATime    int64
	MTime    int64
	CTime    int64
	CRTime   int64
}

// NewRecord returns an empty record with all four timestamps absent.
func NewRecord() *Record {
	return &Record{
		Checksum: "0",
		Inode:    "0",
		ATime:    Absent,
		MTime:    Absent,
		CTime:    Absent,
		CRTime:   Absent,
	}
}

func (r *Record) WithName(name string) *Record   { r.Name = name; return r }
func (r *Record) WithInode(inode string) *Record { r.Inode = inode; return r }
func (r *Record) WithMode(mode string) *Record   { r.Mode = mode; return r }
func (r *Record) WithSize(size uint64) *Record   { r.Size = size; return r }
func (r *Record) WithMTime(ts int64) *Record     { r.MTime = ts; return r }
func (r *Record) WithATime(ts int64) *Record     { r.ATime = ts; return r }
func (r *Record) WithCTime(ts int64) *Record     { r.CTime = ts; return r }
func (r *Record) WithCRTime(ts int64) *Record    { r.CRTime = ts; return r }

// Parse decodes a single bodyfile line without its line terminator.
// Names may themselves contain '|': any fields beyond the expected count are
// folded back into the name.
func Parse(line string) (*Record, error) {
	parts := strings.Split(line, "|")
	if len(parts) < fieldCount {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedLine, fieldCount, len(parts))
	}

	// The last nine fields are fixed; everything between the checksum and
	// them is the name.
	nameEnd := len(parts) - (fieldCount - 2)
	tail := parts[nameEnd:]

	r := &Record{
		Checksum: parts[0],
		Name:     strings.Join(parts[1:nameEnd], "|"),
		Inode:    tail[0],
		Mode:     tail[1],
	}

	var err error
	if r.UID, err = parseUint("uid", tail[2]); err != nil {
		return nil, err
	}
	if r.GID, err = parseUint("gid", tail[3]); err != nil {
		return nil, err
	}
	if r.Size, err = parseUint("size", tail[4]); err != nil {
		return nil, err
	}
	if r.ATime, err = parseTimestamp("atime", tail[5]); err != nil {
		return nil, err
	}
	if r.MTime, err = parseTimestamp("mtime", tail[6]); err != nil {
		return nil, err
	}
	if r.CTime, err = parseTimestamp("ctime", tail[7]); err != nil {
		return nil, err
	}
	if r.CRTime, err = parseTimestamp("crtime", tail[8]); err != nil {
		return nil, err
	}

	return r, nil
}

func parseUint(field, value string) (uint64, error) {
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrMalformedLine, field, value)
	}
	return v, nil
}

func parseTimestamp(field, value string) (int64, error) {
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrMalformedLine, field, value)
	}
	return v, nil
}

// String renders the record as a bodyfile line.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.Checksum)
	b.WriteByte('|')
	b.WriteString(r.Name)
	b.WriteByte('|')
	b.WriteString(r.Inode)
	b.WriteByte('|')
	b.WriteString(r.Mode)
	for _, v := range []uint64{r.UID, r.GID, r.Size} {
		b.WriteByte('|')
		b.WriteString(strconv.FormatUint(v, 10))
	}
	for _, ts := range []int64{r.ATime, r.MTime, r.CTime, r.CRTime} {
		b.WriteByte('|')
		b.WriteString(strconv.FormatInt(ts, 10))
	}
	return b.String()
}
