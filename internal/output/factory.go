package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnknownFormat is returned for output format names that are not supported.
var ErrUnknownFormat = errors.New("unknown output format")

// Format names an output format.
type Format string

const (
	FormatTxt    Format = "txt"
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// Formats lists every supported format.
var Formats = []Format{FormatTxt, FormatCSV, FormatJSON, FormatSQLite}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// IsStream reports whether f is written as a byte stream, as opposed to
// a database.
func (f Format) IsStream() bool {
	return f != FormatSQLite
}

// Aborter is implemented by writers that can discard a partial timeline.
type Aborter interface {
	Abort() error
}

// NewFormatter returns the line formatter of a stream format.
func NewFormatter(f Format, zones Zones) (Formatter, error) {
	switch f {
	case FormatTxt:
		return NewTxtFormatter(zones), nil
	case FormatCSV:
		return NewCSVFormatter(zones), nil
	case FormatJSON:
		return NewJSONFormatter(zones), nil
	case FormatSQLite:
		return nil, fmt.Errorf("%s is not a stream format", f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// NewStreamWriter returns a Writer printing format f to dst.
func NewStreamWriter(f Format, dst io.WriteCloser, zones Zones) (Writer, error) {
	formatter, err := NewFormatter(f, zones)
	if err != nil {
		return nil, err
	}
	return NewLineWriter(dst, formatter), nil
}
