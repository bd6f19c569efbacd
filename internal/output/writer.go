package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"mactime-go/internal/timeline"
)

// Writer is a timeline sink that must be closed once the timeline is drained.
type Writer interface {
	timeline.Writer
	Close() error
}

// Formatter renders one timeline entry as one line, without terminator.
type Formatter interface {
	Format(timestamp int64, e timeline.Entry) string
}

// Header is implemented by formatters whose output starts with a fixed line.
type Header interface {
	Header() string
}

// LineWriter prints every entry through a Formatter, one line each.
type LineWriter struct {
	dst           io.WriteCloser
	buf           *bufio.Writer
	f             Formatter
	headerWritten bool
}

// NewLineWriter writes formatted lines to dst and closes dst on Close.
func NewLineWriter(dst io.WriteCloser, f Formatter) *LineWriter {
	return &LineWriter{
		dst: dst,
		buf: bufio.NewWriterSize(dst, 64*1024),
		f:   f,
	}
}

func (w *LineWriter) Write(timestamp int64, e timeline.Entry) error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	return w.writeLine(w.f.Format(timestamp, e))
}

func (w *LineWriter) writeHeader() error {
	if w.headerWritten {
		return nil
	}
	w.headerWritten = true

	if h, ok := w.f.(Header); ok {
		return w.writeLine(h.Header())
	}
	return nil
}

func (w *LineWriter) writeLine(line string) error {
	if _, err := w.buf.WriteString(line); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// Close writes the header of an empty timeline, flushes and closes the
// destination.
func (w *LineWriter) Close() error {
	headerErr := w.writeHeader()
	flushErr := w.buf.Flush()
	closeErr := w.dst.Close()
	return errors.Join(headerErr, flushErr, closeErr)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NopCloser wraps w so that closing it leaves w open. Used for stdout.
func NopCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}
