package tasks

import (
	"context"
	"log/slog"

	"github.com/infohub/newsfeed/app/cache"
)

// PruneItemsTask garbage-collects item records that the source's index no
// longer references. A full refresh replaces the index wholesale, so
// superseded records linger until this runs.
type PruneItemsTask struct {
	Task
	store cache.Store
}

func NewPruneItemsTask(sourceKey string, store cache.Store) *PruneItemsTask {
	return &PruneItemsTask{
		Task:  NewTask(TaskTypePruneItems, sourceKey),
		store: store,
	}
}

func (t *PruneItemsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	pruned, err := t.store.PruneOrphans(t.SourceKey)
	if err != nil {
		return err
	}

	if pruned > 0 {
		slog.Info("Task completed", "type", "PruneItems", "source", t.SourceKey, "pruned", pruned, "duration", t.GetDuration())
	}

	return nil
}
