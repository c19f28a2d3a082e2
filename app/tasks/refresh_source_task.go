package tasks

import (
	"context"
	"log/slog"

	"github.com/infohub/newsfeed/app/freshness"
)

// RefreshSourceTask runs one TTL-gated freshness check for a source. The
// controller skips the fetch when the cache is still fresh, so enqueueing
// these every scheduler tick is cheap. Refresh failures are not retried
// within a cycle; the next tick is the retry.
type RefreshSourceTask struct {
	Task
	controller *freshness.Controller
}

func NewRefreshSourceTask(sourceKey string, controller *freshness.Controller) *RefreshSourceTask {
	return &RefreshSourceTask{
		Task:       NewTask(TaskTypeRefreshSource, sourceKey),
		controller: controller,
	}
}

func (t *RefreshSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.controller.EnsureFresh(ctx, t.SourceKey); err != nil {
		return err
	}

	slog.Debug("Task completed", "type", "RefreshSource", "source", t.SourceKey, "duration", t.GetDuration())

	return nil
}
