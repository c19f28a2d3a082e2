package tasks

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/infohub/newsfeed/app/cfg"
	"github.com/infohub/newsfeed/app/sources"
)

type fakeTask struct {
	Task
	executed atomic.Int32
	done     chan struct{}
}

func newFakeTask() *fakeTask {
	return &fakeTask{
		Task: NewTask(TaskTypeRefreshSource, "demo"),
		done: make(chan struct{}),
	}
}

func (t *fakeTask) Execute(ctx context.Context) error {
	if t.executed.Add(1) == 1 {
		close(t.done)
	}
	return nil
}

func newTestScheduler(t *testing.T, sourcesDir string) TaskSchedulerInterface {
	t.Helper()

	cfg.Set(&cfg.Cfg{WorkerCount: 2, SchedulerInterval: 3600})

	registry := sources.NewRegistry(sourcesDir, 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}

	return NewScheduler(registry, nil, nil)
}

func TestScheduler_ExecutesEnqueuedTask(t *testing.T) {
	scheduler := newTestScheduler(t, t.TempDir())
	scheduler.Start()
	defer scheduler.Stop()

	task := newFakeTask()
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Failed to enqueue task: %v", err)
	}

	select {
	case <-task.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Task was not executed within timeout")
	}

	if got := task.executed.Load(); got != 1 {
		t.Errorf("Expected 1 execution, got %d", got)
	}
}

func TestScheduler_StopDrainsWorkers(t *testing.T) {
	scheduler := newTestScheduler(t, t.TempDir())
	scheduler.Start()

	task := newFakeTask()
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("Failed to enqueue task: %v", err)
	}

	stopped := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return within timeout")
	}
}

func TestScheduler_EnqueuesRefreshTasksOnStart(t *testing.T) {
	dir := t.TempDir()
	config := "label: Demo\nfeed_urls:\n  - https://news.example.com/rss\n"
	if err := os.WriteFile(filepath.Join(dir, "demo.yml"), []byte(config), 0o644); err != nil {
		t.Fatalf("Failed to write source config: %v", err)
	}

	cfg.Set(&cfg.Cfg{WorkerCount: 0, SchedulerInterval: 3600})

	registry := sources.NewRegistry(dir, 300)
	if err := registry.Run(); err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}

	scheduler := NewScheduler(registry, nil, nil).(*Scheduler)
	scheduler.Start()
	defer scheduler.Stop()

	// No workers are running, so the initial refresh task stays queued.
	select {
	case task := <-scheduler.taskQueue:
		if task.GetType() != TaskTypeRefreshSource {
			t.Errorf("Expected refresh_source task, got %s", task.GetType())
		}
		if task.GetSourceKey() != "demo" {
			t.Errorf("Expected source demo, got %s", task.GetSourceKey())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("No refresh task enqueued on start")
	}
}

func TestTask_Accessors(t *testing.T) {
	task := NewTask(TaskTypePruneItems, "demo")

	if task.GetType() != TaskTypePruneItems {
		t.Errorf("Expected prune_items, got %s", task.GetType())
	}
	if task.GetSourceKey() != "demo" {
		t.Errorf("Expected source demo, got %s", task.GetSourceKey())
	}
	if task.GetID() == "" {
		t.Error("Expected non-empty task ID")
	}
	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before Start")
	}

	task.Start()
	if task.StartedAt == nil {
		t.Error("Expected StartedAt to be set after Start")
	}
}
