package manager

import "errors"

// Error kinds returned by Supervisor. Match them with errors.Is; most are
// wrapped with the underlying cause.
var (
	ErrInvalidID         = errors.New("invalid profile id")
	ErrConfigNotFound    = errors.New("config not found")
	ErrAlreadyRunning    = errors.New("already running")
	ErrNotRunning        = errors.New("not running")
	ErrSpawnFailed       = errors.New("spawn failed")
	ErrTerminationFailed = errors.New("termination failed")
	ErrIO                = errors.New("io error")
)
