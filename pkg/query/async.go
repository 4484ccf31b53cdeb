package query

import (
	"context"
	"errors"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
)

// ErrEngineClosed is reported by executions submitted after Close.
var ErrEngineClosed = errors.New("query engine closed")

// ExecuteAsync runs qc on the engine's bounded worker pool. The returned
// channel yields exactly one result and is then closed. Submission blocks
// while every worker is busy.
func (e *Engine) ExecuteAsync(ctx context.Context, qc *Context) <-chan *Result {
	out := make(chan *Result, 1)

	e.asyncMu.RLock()
	defer e.asyncMu.RUnlock()

	if e.asyncClosed {
		out <- failed(qc.def.Name, apperrors.CodeExecutionFailed, ErrEngineClosed)
		close(out)
		return out
	}

	e.async.Go(func() {
		defer close(out)
		out <- e.Execute(ctx, qc)
	})
	return out
}

// Close stops accepting asynchronous executions and waits for running ones.
func (e *Engine) Close() {
	e.asyncMu.Lock()
	if e.asyncClosed {
		e.asyncMu.Unlock()
		return
	}
	e.asyncClosed = true
	e.asyncMu.Unlock()

	e.async.Wait()
}
