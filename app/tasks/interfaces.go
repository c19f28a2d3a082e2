package tasks

// TaskSchedulerInterface is the scheduling contract used by the main
// application and the HTTP handlers.
//
//	scheduler := NewScheduler(registry, controller, store)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
