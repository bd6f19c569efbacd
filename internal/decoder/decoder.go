package decoder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mactime-go/internal/bodyfile"
	"mactime-go/internal/pipeline"
)

// ErrStrictAbort is returned when a line fails to parse in strict mode.
var ErrStrictAbort = errors.New("aborted on malformed line (strict mode)")

// Stats counts what the decoder did with its input.
type Stats struct {
	Comments int64
	Skipped  int64
	Decoded  int64
}

// Decoder is the pipeline stage that turns raw bodyfile lines into records.
// Records are emitted in input order.
type Decoder struct {
	*pipeline.Stage[*bodyfile.Record]
	stats Stats
}

// New starts decoding lines received from reader.
func New(g *pipeline.Group, reader <-chan string, opts pipeline.RunOptions) *Decoder {
	d := &Decoder{}
	d.Stage = pipeline.NewFilter(g, "decoder", reader, opts, d.worker)
	return d
}

// Stats returns the decoder's counters. Only valid after Join.
func (d *Decoder) Stats() Stats {
	return d.stats
}

func (d *Decoder) worker(ctx context.Context, reader <-chan string, tx chan<- *bodyfile.Record, opts pipeline.RunOptions) error {
	logger := opts.Log()

	for {
		line, ok := pipeline.Receive(ctx, reader)
		if !ok {
			return nil
		}

		if strings.HasPrefix(line, "#") {
			d.stats.Comments++
			continue
		}
		line = TrimNewline(line)

		record, err := bodyfile.Parse(line)
		if err != nil {
			if opts.StrictMode {
				return fmt.Errorf("%w: %w: %q", ErrStrictAbort, err, line)
			}
			logger.Warn("bodyfile parser error", "err", err, "line", line)
			d.stats.Skipped++
			continue
		}

		d.stats.Decoded++
		if !pipeline.Send(ctx, tx, record) {
			return nil
		}
	}
}

// TrimNewline strips one trailing "\n", and a "\r" directly before it.
func TrimNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		s = s[:len(s)-1]
		s = strings.TrimSuffix(s, "\r")
	}
	return s
}
