package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemVault stores artifacts as files below a root directory:
//
//	<root>/
//	  timelines/
//	    <name>
type FileSystemVault struct {
	name         string
	root         string
	timelinesDir string
}

var _ Vault = (*FileSystemVault)(nil)

// NewFileSystemVault creates the vault's directory structure under root.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	timelinesDir := filepath.Join(root, "timelines")
	if err := os.MkdirAll(timelinesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create timelines directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		timelinesDir: timelinesDir,
	}, nil
}

func (v *FileSystemVault) Name() string { return v.name }

// PutArtifact writes the artifact atomically: readers never observe a
// partially written file.
func (v *FileSystemVault) PutArtifact(ctx context.Context, name string, r io.Reader, size int64) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(v.timelinesDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	counter := &countingReader{r: r}
	if _, err := io.Copy(tmp, readerWithContext(ctx, counter)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := checkSize(size, counter.n); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, filepath.Join(v.timelinesDir, name)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (v *FileSystemVault) GetArtifact(ctx context.Context, name string, w io.Writer) error {
	if err := ValidateArtifactName(name); err != nil {
		return err
	}

	f, err := os.Open(filepath.Join(v.timelinesDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, readerWithContext(ctx, f)); err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the vault directories exist.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	for _, dir := range []string{v.root, v.timelinesDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
