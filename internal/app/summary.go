package app

import (
	"time"

	"github.com/dustin/go-humanize"

	"mactime-go/internal/decoder"
	"mactime-go/internal/source"
	"mactime-go/internal/timeline"
)

// RunSummary describes one correlation run. A summary starts out successful
// and is marked failed by Fail.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string // "success" or "error"

	Input    source.Stats
	Decoder  decoder.Stats
	Timeline timeline.Stats

	Output   string // file written, empty for stdout
	Artifact string // name stored in the vault, empty without an upload
}

// NewRunSummary creates the summary of a run that has just started.
func NewRunSummary(runID string, startedAt time.Time) *RunSummary {
	return &RunSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Status:    "success",
	}
}

// Fail marks the run failed at finishedAt.
func (s *RunSummary) Fail(finishedAt time.Time) {
	s.Status = "error"
	s.FinishedAt = finishedAt
}

// Finish marks the run finished at finishedAt.
func (s *RunSummary) Finish(finishedAt time.Time) {
	s.FinishedAt = finishedAt
}

// Succeeded reports whether the run completed.
func (s *RunSummary) Succeeded() bool {
	return s.Status == "success"
}

// Elapsed is the run's wall-clock duration.
func (s *RunSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// LogArgs renders the summary as slog key/value pairs.
func (s *RunSummary) LogArgs() []any {
	args := []any{
		"status", s.Status,
		"input", s.Input.Name,
		"compression", s.Input.Compression.String(),
		"read", humanize.Bytes(uint64(max(s.Input.Bytes, 0))),
		"lines", humanize.Comma(s.Input.Lines),
		"skipped", s.Decoder.Skipped,
		"records", s.Timeline.Records,
		"entries", humanize.Comma(s.Timeline.Entries),
		"dropped", s.Timeline.Dropped,
		"elapsed", s.Elapsed().Truncate(time.Millisecond),
	}
	if s.Input.Digest != "" {
		args = append(args, "blake3", s.Input.Digest)
	}
	if s.Output != "" {
		args = append(args, "output", s.Output)
	}
	if s.Artifact != "" {
		args = append(args, "artifact", s.Artifact)
	}
	return args
}
