package session

import (
	"context"

	"github.com/parlo-dev/parlo/internal/pipeline"
)

// Committer persists a settled pipeline result when session stop succeeds.
type Committer interface {
	Commit(context.Context, pipeline.Result) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(context.Context, pipeline.Result) error

func (f CommitFunc) Commit(ctx context.Context, result pipeline.Result) error {
	return f(ctx, result)
}
