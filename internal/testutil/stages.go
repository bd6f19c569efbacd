package testutil

import (
	"context"
	"fmt"

	"mactime-go/internal/bodyfile"
	"mactime-go/internal/pipeline"
)

// NewLineSource starts a stage that emits lines and then finishes.
func NewLineSource(g *pipeline.Group, lines []string) *pipeline.Stage[string] {
	return pipeline.NewSource(g, "lines", pipeline.RunOptions{}, func(ctx context.Context, out chan<- string, _ pipeline.RunOptions) error {
		for _, line := range lines {
			if !pipeline.Send(ctx, out, line) {
				return nil
			}
		}
		return nil
	})
}

// NewRecordSource starts a stage that emits records and then finishes.
func NewRecordSource(g *pipeline.Group, records []*bodyfile.Record) *pipeline.Stage[*bodyfile.Record] {
	return pipeline.NewSource(g, "records", pipeline.RunOptions{}, func(ctx context.Context, out chan<- *bodyfile.Record, _ pipeline.RunOptions) error {
		for _, r := range records {
			if !pipeline.Send(ctx, out, r) {
				return nil
			}
		}
		return nil
	})
}

// NewFailingSource starts a stage that emits records and then fails with err.
func NewFailingSource(g *pipeline.Group, records []*bodyfile.Record, err error) *pipeline.Stage[*bodyfile.Record] {
	return pipeline.NewSource(g, "failing", pipeline.RunOptions{}, func(ctx context.Context, out chan<- *bodyfile.Record, _ pipeline.RunOptions) error {
		for _, r := range records {
			if !pipeline.Send(ctx, out, r) {
				return nil
			}
		}
		return err
	})
}

// Name returns a file name whose lexical order matches the order of i.
func Name(i int) string {
	return fmt.Sprintf("/evidence/file-%06d", i)
}
