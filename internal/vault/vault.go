package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrArtifactNotFound is returned by GetArtifact for unknown names.
var ErrArtifactNotFound = errors.New("artifact not found")

// Vault stores finished timeline artifacts under flat names. Streams are
// passed through io.Reader/io.Writer so large timelines are never held in
// memory by the caller.
type Vault interface {
	Name() string

	// PutArtifact stores size bytes read from r under name, replacing any
	// artifact of the same name.
	PutArtifact(ctx context.Context, name string, r io.Reader, size int64) error

	// GetArtifact writes the artifact stored under name to w.
	GetArtifact(ctx context.Context, name string, w io.Writer) error

	// ValidateSetup verifies that the vault is reachable and usable.
	ValidateSetup(ctx context.Context) error
}

// ValidateArtifactName rejects names that are not a single path element.
func ValidateArtifactName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || path.Base(name) != name {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// countingReader verifies the number of bytes read against the announced size.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func checkSize(expected, got int64) error {
	if expected != got {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expected, got)
	}
	return nil
}
