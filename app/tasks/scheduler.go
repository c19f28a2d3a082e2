package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/infohub/newsfeed/app/cache"
	"github.com/infohub/newsfeed/app/cfg"
	"github.com/infohub/newsfeed/app/freshness"
	"github.com/infohub/newsfeed/app/sources"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// pruneEvery spaces prune passes out relative to refresh checks.
const pruneEvery = 10

type Scheduler struct {
	registry    *sources.Registry
	controller  *freshness.Controller
	store       cache.Store
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(registry *sources.Registry, controller *freshness.Controller, store cache.Store) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		registry:    registry,
		controller:  controller,
		store:       store,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueRefreshTasks()

		tick := 0
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRefreshTasks()
				tick++
				if tick%pruneEvery == 0 {
					s.enqueuePruneTasks()
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueRefreshTasks() {
	sourceList := s.registry.List()
	if len(sourceList) == 0 {
		slog.Debug("No sources configured")
		return
	}

	for _, source := range sourceList {
		task := NewRefreshSourceTask(source.Key, s.controller)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue RefreshSourceTask", "source", source.Key, "error", err)
		}
	}
}

func (s *Scheduler) enqueuePruneTasks() {
	for _, source := range s.registry.List() {
		task := NewPruneItemsTask(source.Key, s.store)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue PruneItemsTask", "source", source.Key, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	if err := task.Execute(taskCtx); err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "source", task.GetSourceKey(), "error", err)
	}
}
