package jobs

import "errors"

var (
	ErrInvalidJob           = errors.New("job requires a name, schedule and function")
	ErrJobAlreadyRegistered = errors.New("job already registered")
	ErrJobNotFound          = errors.New("job not found")
	ErrJobRunning           = errors.New("job is already running")
	ErrJobPanicked          = errors.New("job panicked")
	ErrNoJobs               = errors.New("scheduler has no jobs")
)
