package source

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mactime-go/internal/pipeline"
)

// ErrInput is wrapped by every error caused by the underlying input stream.
var ErrInput = errors.New("input error")

// Stdin is the path naming standard input.
const Stdin = "-"

const readBufferSize = 64 * 1024

// Stats describes the raw input consumed by a Reader.
type Stats struct {
	Name        string
	Compression Compression
	Bytes       int64
	Lines       int64
	Digest      string // blake3 of the raw, still compressed bytes
}

// Reader is the first pipeline stage. It produces the lines of a bodyfile,
// each still carrying its line terminator.
type Reader struct {
	*pipeline.Stage[string]
	stats Stats
}

// NewReader opens path and starts reading it in the background. An empty
// path or "-" reads standard input. Opening errors are returned immediately;
// read errors are reported by Join.
func NewReader(g *pipeline.Group, path string, opts pipeline.RunOptions) (*Reader, error) {
	if path == "" || path == Stdin {
		return FromReader(g, "stdin", os.Stdin, opts), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}

	return FromReader(g, path, f, opts), nil
}

// FromReader starts reading rc in the background. rc is closed when the
// stage ends, whatever its outcome.
func FromReader(g *pipeline.Group, name string, rc io.ReadCloser, opts pipeline.RunOptions) *Reader {
	r := &Reader{stats: Stats{Name: name}}
	r.Stage = pipeline.NewSource(g, "reader", opts, func(ctx context.Context, out chan<- string, opts pipeline.RunOptions) error {
		return r.worker(ctx, rc, out, opts)
	})
	return r
}

// Stats returns what the reader consumed. Only valid after Join.
func (r *Reader) Stats() Stats {
	return r.stats
}

func (r *Reader) worker(ctx context.Context, rc io.ReadCloser, out chan<- string, opts pipeline.RunOptions) error {
	defer rc.Close()

	// Unblock a pending Read when the pipeline fails elsewhere.
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer stop()

	hasher := blake3.New()
	counter := &countingReader{r: rc}
	raw := bufio.NewReaderSize(io.TeeReader(counter, hasher), readBufferSize)

	dec, kind, release, err := decompress(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInput, r.stats.Name, err)
	}
	defer release()

	r.stats.Compression = kind
	if kind != Plain {
		opts.Log().Debug("decompressing input", "input", r.stats.Name, "compression", kind.String())
	}

	// UTF-16 input announces itself with a BOM; anything else is passed
	// through byte for byte so that non-UTF-8 names survive.
	lines := bufio.NewReaderSize(transform.NewReader(dec, unicode.BOMOverride(transform.Nop)), readBufferSize)

	for {
		line, err := lines.ReadString('\n')
		if len(line) > 0 {
			r.stats.Lines++
			if !pipeline.Send(ctx, out, line) {
				return nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: reading %s: %w", ErrInput, r.stats.Name, err)
		}
	}

	// Trailing bytes after a compressed stream still belong in the digest.
	if _, err := io.Copy(io.Discard, raw); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%w: reading %s: %w", ErrInput, r.stats.Name, err)
	}

	r.stats.Bytes = counter.n
	r.stats.Digest = hex.EncodeToString(hasher.Sum(nil))

	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
