package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when triggering a task on a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrUnknownTask is returned for a task kind no executor is registered for
	ErrUnknownTask = errors.New("unknown task kind")

	// ErrTaskAlreadyRunning is returned when a task is triggered while a run is in flight
	ErrTaskAlreadyRunning = errors.New("task is already running")
)
