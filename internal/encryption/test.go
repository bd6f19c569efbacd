package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// testHeader marks streams produced by TestEncryptor.
var testHeader = []byte("MTENC\x00\x00\x01")

// TestEncryptor prefixes a fixed header instead of encrypting. Output differs
// from plaintext and is trivially reversible.
type TestEncryptor struct{}

var _ Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(string) error {
	return nil
}

func (e *TestEncryptor) Wrap(w io.Writer) (io.WriteCloser, error) {
	return &headerWriter{w: w}, nil
}

func (e *TestEncryptor) Unlock(string) (DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// headerWriter writes testHeader ahead of the first byte, or on Close for an
// empty stream.
type headerWriter struct {
	w       io.Writer
	started bool
}

func (h *headerWriter) start() error {
	if h.started {
		return nil
	}
	h.started = true
	if _, err := h.w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	return nil
}

func (h *headerWriter) Write(p []byte) (int, error) {
	if err := h.start(); err != nil {
		return 0, err
	}
	return h.w.Write(p)
}

func (h *headerWriter) Close() error {
	return h.start()
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return errors.New("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
