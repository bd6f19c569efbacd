package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"mactime-go/internal/timeline"
)

// blankDate replaces the date column of txt lines that repeat the previous
// line's timestamp.
var blankDate = strings.Repeat(" ", len(NegativeDate))

// TxtFormatter renders the classic fixed-width mactime layout.
type TxtFormatter struct {
	zones    Zones
	lastTS   int64
	lastDate string
	started  bool
}

func NewTxtFormatter(zones Zones) *TxtFormatter {
	return &TxtFormatter{zones: zones}
}

func (f *TxtFormatter) Format(timestamp int64, e timeline.Entry) string {
	date := blankDate
	if !f.started || timestamp != f.lastTS {
		f.started = true
		f.lastTS = timestamp
		f.lastDate = FormatDate(timestamp, f.zones)
		date = f.lastDate
	}

	r := e.Record
	return fmt.Sprintf("%s %8d %s %-12s %-7d %-7d %s %s",
		date, r.Size, e.Flags, r.Mode, r.UID, r.GID, r.Inode, r.Name)
}

// CSVFormatter renders comma separated lines with a header. The name column
// is always quoted.
type CSVFormatter struct {
	zones Zones
}

func NewCSVFormatter(zones Zones) *CSVFormatter {
	return &CSVFormatter{zones: zones}
}

func (f *CSVFormatter) Header() string {
	return "Date,Size,Type,Mode,UID,GID,Meta,File Name"
}

func (f *CSVFormatter) Format(timestamp int64, e timeline.Entry) string {
	r := e.Record
	return fmt.Sprintf("%s,%d,%s,%s,%d,%d,%s,\"%s\"",
		FormatDate(timestamp, f.zones), r.Size, e.Flags, r.Mode, r.UID, r.GID, r.Inode,
		strings.ReplaceAll(r.Name, `"`, `""`))
}

// JSONFormatter renders one JSON object per line.
type JSONFormatter struct {
	zones Zones
	buf   bytes.Buffer
	enc   *json.Encoder
}

type jsonEntry struct {
	TS    string `json:"ts"`
	Size  uint64 `json:"size"`
	Flags string `json:"flags"`
	Mode  string `json:"mode"`
	UID   uint64 `json:"uid"`
	GID   uint64 `json:"gid"`
	Inode string `json:"inode"`
	Name  string `json:"name"`
}

func NewJSONFormatter(zones Zones) *JSONFormatter {
	f := &JSONFormatter{zones: zones}
	f.enc = json.NewEncoder(&f.buf)
	f.enc.SetEscapeHTML(false)
	return f
}

func (f *JSONFormatter) Format(timestamp int64, e timeline.Entry) string {
	r := e.Record
	f.buf.Reset()

	// Encoding a struct of strings and integers cannot fail.
	_ = f.enc.Encode(jsonEntry{
		TS:    FormatDate(timestamp, f.zones),
		Size:  r.Size,
		Flags: e.Flags.String(),
		Mode:  r.Mode,
		UID:   r.UID,
		GID:   r.GID,
		Inode: r.Inode,
		Name:  r.Name,
	})

	return strings.TrimSuffix(f.buf.String(), "\n")
}
