package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the container format of an input stream.
type Compression int

const (
	Plain Compression = iota
	Gzip
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "plain"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect sniffs the first bytes of br without consuming them.
func Detect(br *bufio.Reader) Compression {
	// A short stream yields fewer bytes and an error; the prefix checks
	// below still hold for whatever was read.
	head, _ := br.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, lz4Magic):
		return LZ4
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	default:
		return Plain
	}
}

// decompress wraps br according to its detected compression. The returned
// close function releases decoder resources; it does not close br.
func decompress(br *bufio.Reader) (io.Reader, Compression, func(), error) {
	kind := Detect(br)

	switch kind {
	case Gzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, kind, nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return zr, kind, func() { zr.Close() }, nil

	case Zstd:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, kind, nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return zr, kind, zr.Close, nil

	case LZ4:
		return lz4.NewReader(br), kind, func() {}, nil

	default:
		return br, kind, func() {}, nil
	}
}
