package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mactime-go/internal/database"
	"mactime-go/internal/output"
)

// timelineOutput is the destination of one run.
type timelineOutput struct {
	output.Writer
	path      string // file written, empty for stdout
	abort     func() error
	setDigest func(string)
}

// isStdio reports whether path names stdin or stdout.
func isStdio(path string) bool {
	return path == "" || path == "-"
}

// writesFile reports whether path names a file a vault could store.
func writesFile(path string) bool {
	return !isStdio(path) && path != ":memory:"
}

func (a *MactimeApp) openOutput(ctx context.Context) (*timelineOutput, error) {
	if a.format.IsStream() {
		return a.openStream()
	}
	return a.openDatabase(ctx)
}

func (a *MactimeApp) openStream() (*timelineOutput, error) {
	out := &timelineOutput{
		abort:     func() error { return nil },
		setDigest: func(string) {},
	}

	var dst io.WriteCloser
	if isStdio(a.cfg.Output.Path) {
		dst = output.NopCloser(a.env.Stdout)
	} else {
		f, err := createOutputFile(a.cfg.Output.Path)
		if err != nil {
			return nil, err
		}
		dst = f
		out.path = a.cfg.Output.Path
		out.abort = f.Abort
	}

	if a.encryptor != nil {
		enc, err := a.encryptor.Wrap(dst)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("starting encryption: %w", err), out.abort())
		}
		dst = &stackedCloser{WriteCloser: enc, next: dst}
	}

	w, err := output.NewStreamWriter(a.format, dst, a.zones)
	if err != nil {
		return nil, errors.Join(err, out.abort())
	}
	out.Writer = w
	return out, nil
}

func (a *MactimeApp) openDatabase(ctx context.Context) (*timelineOutput, error) {
	store, err := database.NewStoreFromConfig(a.cfg.Output)
	if err != nil {
		return nil, err
	}

	run := database.Run{
		ID:        a.runID,
		StartedAt: a.env.Clock.Now().UTC(),
		Source:    a.inputName(),
		Strict:    a.cfg.Input.Strict,
	}
	w, err := output.NewSQLiteWriter(ctx, store, run, a.zones, a.env.Clock)
	if err != nil {
		return nil, errors.Join(err, store.Close())
	}

	out := &timelineOutput{
		Writer:    w,
		abort:     w.Abort,
		setDigest: w.SetInputDigest,
	}
	if writesFile(a.cfg.Output.Path) {
		out.path = a.cfg.Output.Path
	}
	return out, nil
}

// outputFile is written under a temporary name next to path and renamed
// into place on Close, so a failed run never leaves a partial timeline.
type outputFile struct {
	f    *os.File
	path string
}

func createOutputFile(path string) (*outputFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".mactime-*")
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return &outputFile{f: f, path: path}, nil
}

func (o *outputFile) Write(p []byte) (int, error) {
	return o.f.Write(p)
}

func (o *outputFile) Close() error {
	if err := o.f.Close(); err != nil {
		os.Remove(o.f.Name())
		return fmt.Errorf("closing output file: %w", err)
	}
	if err := os.Rename(o.f.Name(), o.path); err != nil {
		os.Remove(o.f.Name())
		return fmt.Errorf("renaming output file: %w", err)
	}
	return nil
}

// Abort discards everything written so far.
func (o *outputFile) Abort() error {
	o.f.Close()
	if err := os.Remove(o.f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing partial output: %w", err)
	}
	return nil
}

// stackedCloser closes an encrypting writer, then the stream beneath it.
type stackedCloser struct {
	io.WriteCloser
	next io.Closer
}

func (s *stackedCloser) Close() error {
	if err := s.WriteCloser.Close(); err != nil {
		return errors.Join(err, s.next.Close())
	}
	return s.next.Close()
}
