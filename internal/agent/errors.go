package agent

import "errors"

// Sentinel errors of the agent package, grounded on the teacher's
// internal/agent/errors.go categorized sentinel pattern. Agent.Execute
// returns ErrNotRunning and Runtime.Register returns ErrAlreadyExists;
// ErrUnknownAgent is carried in Runtime.Execute's failed result. No function
// in this package returns ErrNoProvider.
var (
	ErrNotRunning    = errors.New("agent: not running")
	ErrNoProvider    = errors.New("agent: no model provider configured")
	ErrUnknownAgent  = errors.New("agent: unknown agent id")
	ErrAlreadyExists = errors.New("agent: an agent with this id is already registered")
)
