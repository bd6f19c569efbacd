package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mactime-go/internal/config"
	"mactime-go/internal/decoder"
	"mactime-go/internal/encryption"
	"mactime-go/internal/output"
	"mactime-go/internal/pipeline"
	"mactime-go/internal/source"
	"mactime-go/internal/timeline"
	"mactime-go/internal/vault"
)

// ErrConfig is wrapped by configuration errors detected before a run starts.
var ErrConfig = errors.New("invalid configuration")

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitStrictAbort = 2
	ExitInput       = 3
	ExitInvariant   = 4
)

// ExitCode maps the outcome of a run to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, timeline.ErrInvariant):
		return ExitInvariant
	case errors.Is(err, decoder.ErrStrictAbort):
		return ExitStrictAbort
	case errors.Is(err, source.ErrInput):
		return ExitInput
	default:
		return ExitFailure
	}
}

// Clock abstracts time retrieval so runs are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts run ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// Env is the process environment a run executes in. Nil fields fall back to
// the real process.
type Env struct {
	Stdin  io.ReadCloser
	Stdout io.Writer
	Stderr io.Writer
	Clock  Clock
	IDs    IDGenerator
}

func (e Env) withDefaults() Env {
	if e.Stdin == nil {
		e.Stdin = os.Stdin
	}
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Clock == nil {
		e.Clock = RealClock{}
	}
	if e.IDs == nil {
		e.IDs = UUIDGenerator{}
	}
	return e
}

// MactimeApp is the application layer between the CLI and the pipeline.
// It validates the config, builds every dependency from it and runs one
// bodyfile through reader, decoder and sorter into the configured output.
// The caller must call Close when done.
type MactimeApp struct {
	cfg       *config.Config
	env       Env
	runID     string
	format    output.Format
	zones     output.Zones
	encryptor encryption.Encryptor // nil unless encryption is enabled
	vault     vault.Vault          // nil unless a vault is configured
	logger    *slog.Logger
	logFile   *os.File
}

// NewMactimeApp creates a fully wired MactimeApp from cfg.
func NewMactimeApp(ctx context.Context, cfg *config.Config, env Env) (*MactimeApp, error) {
	env = env.withDefaults()

	level, err := ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	zones, err := output.LoadZones(cfg.Time.From, cfg.Time.To)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if cfg.Encryption.Enabled && !format.IsStream() {
		return nil, fmt.Errorf("%w: encryption is not supported for the %s format", ErrConfig, format)
	}
	if cfg.Vault.Enabled() && !writesFile(cfg.Output.Path) {
		return nil, fmt.Errorf("%w: uploading to a vault requires an output file", ErrConfig)
	}

	var enc encryption.Encryptor
	if cfg.Encryption.Enabled {
		enc, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		if !enc.IsConfigured() {
			return nil, fmt.Errorf("%w: encryption keys not found, run 'mactime keys init'", ErrConfig)
		}
	}

	var v vault.Vault
	if cfg.Vault.Enabled() {
		v, err = vault.NewVaultFromConfig(ctx, cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
		if err := v.ValidateSetup(ctx); err != nil {
			return nil, fmt.Errorf("validating vault: %w", err)
		}
	}

	runID := env.IDs.New()
	logger, logFile, err := newLogger(env.Stderr, cfg.Log.Dir, runID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &MactimeApp{
		cfg:       cfg,
		env:       env,
		runID:     runID,
		format:    format,
		zones:     zones,
		encryptor: enc,
		vault:     v,
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// RunID identifies this run in logs and stored output.
func (a *MactimeApp) RunID() string { return a.runID }

// Logger returns the run's logger.
func (a *MactimeApp) Logger() *slog.Logger { return a.logger }

// Vault returns the configured vault, or nil.
func (a *MactimeApp) Vault() vault.Vault { return a.vault }

// Run correlates the configured bodyfile into a timeline and writes it out.
// A run that fails before its output is closed leaves no output file
// behind and uploads nothing. The summary is returned in both cases.
func (a *MactimeApp) Run(ctx context.Context) (*RunSummary, error) {
	summary := NewRunSummary(a.runID, a.env.Clock.Now())
	a.logger.Debug("run started", "input", a.inputName(), "format", string(a.format), "strict", a.cfg.Input.Strict)

	out, err := a.openOutput(ctx)
	if err != nil {
		return a.fail(summary, nil, fmt.Errorf("opening output: %w", err))
	}

	g := pipeline.NewGroup(ctx)
	defer g.Close()

	opts := pipeline.RunOptions{
		StrictMode:         a.cfg.Input.Strict,
		KeepNameCollisions: a.cfg.Output.KeepNameCollisions,
		Logger:             &slogAdapter{l: a.logger},
	}

	reader, err := a.openInput(g, opts)
	if err != nil {
		return a.fail(summary, out, err)
	}
	dec := decoder.New(g, reader.Receiver(), opts)
	sorter := timeline.NewSorter().WithReceiver(dec.Receiver(), opts).WithOutput(out)

	stages := []pipeline.Joinable{reader, dec}
	if err := sorter.Run(g); err != nil {
		g.Fail(err)
	} else {
		stages = append(stages, sorter)
	}

	err = pipeline.JoinAll(g, stages...)
	summary.Input = reader.Stats()
	summary.Decoder = dec.Stats()
	summary.Timeline = sorter.Stats()
	if err != nil {
		return a.fail(summary, out, err)
	}

	out.setDigest(summary.Input.Digest)
	if err := out.Close(); err != nil {
		return a.fail(summary, nil, fmt.Errorf("closing output: %w", err))
	}
	summary.Output = out.path

	if a.vault != nil {
		name, err := a.upload(ctx, out.path)
		if err != nil {
			return a.fail(summary, nil, err)
		}
		summary.Artifact = name
	}

	summary.Finish(a.env.Clock.Now())
	a.logger.Info("run finished", summary.LogArgs()...)
	return summary, nil
}

func (a *MactimeApp) fail(summary *RunSummary, out *timelineOutput, err error) (*RunSummary, error) {
	if out != nil {
		if abortErr := out.abort(); abortErr != nil {
			a.logger.Warn("discarding output", "err", abortErr)
		}
	}
	summary.Fail(a.env.Clock.Now())
	a.logger.Error("run failed", "err", err)
	return summary, err
}

func (a *MactimeApp) inputName() string {
	if isStdio(a.cfg.Input.Path) {
		return "stdin"
	}
	return a.cfg.Input.Path
}

func (a *MactimeApp) openInput(g *pipeline.Group, opts pipeline.RunOptions) (*source.Reader, error) {
	if isStdio(a.cfg.Input.Path) {
		return source.FromReader(g, "stdin", a.env.Stdin, opts), nil
	}
	return source.NewReader(g, a.cfg.Input.Path, opts)
}

// upload stores the finished output file in the vault under its base name.
func (a *MactimeApp) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening output for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat output: %w", err)
	}

	name := filepath.Base(path)
	if err := a.vault.PutArtifact(ctx, name, f, info.Size()); err != nil {
		return "", fmt.Errorf("uploading %s to vault %s: %w", name, a.vault.Name(), err)
	}
	a.logger.Debug("uploaded timeline", "vault", a.vault.Name(), "artifact", name, "size", info.Size())
	return name, nil
}

// Close releases the run's log file.
func (a *MactimeApp) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}
