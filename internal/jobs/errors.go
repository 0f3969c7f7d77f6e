package jobs

import "errors"

var (
	ErrAlreadyRunning = errors.New("job already running")
	ErrPanicked       = errors.New("job panicked")
)
