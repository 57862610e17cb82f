package execshell

import (
	"errors"
	"time"
)

const (
	// DefaultPollInterval is used when an invocation leaves PollInterval unset.
	DefaultPollInterval = time.Second

	// DefaultTimeout is used when an invocation leaves Timeout unset.
	DefaultTimeout = 10 * time.Minute

	// DefaultDetachGracePeriod is how long a detached invocation is observed before returning.
	DefaultDetachGracePeriod = 5 * time.Second

	// DetachedProcessMessage replaces standard output when a detached process is still running.
	DetachedProcessMessage = "Process is still running in the background; its output and exit code will not be collected."

	noResultMessageConstant = "no result"
)

// ErrNoResult is the single failure outcome of ProcessRunner.Run. Launch failures,
// timeouts, and internal faults are all reported through this value.
var ErrNoResult = errors.New(noResultMessageConstant)

// InvocationState identifies the terminal state of an invocation that produced a result.
type InvocationState string

// Terminal states that carry a result.
const (
	InvocationStateCompleted InvocationState = InvocationState("completed")
	InvocationStateDetached  InvocationState = InvocationState("detached")
)

// ShellInvocation describes one command line to run through the host shell.
type ShellInvocation struct {
	CommandText       string
	WorkingDirectory  string
	WaitForCompletion bool
	PollInterval      time.Duration
	Timeout           time.Duration
}

// InvocationResult captures the outcome of an invocation that reached a result-bearing state.
// ExitCode is only meaningful when State is InvocationStateCompleted.
type InvocationResult struct {
	State          InvocationState
	ExitCode       int
	StandardOutput string
	StandardError  string
}

// Completed reports whether the process ran to completion within the allotted time.
func (result InvocationResult) Completed() bool {
	return result.State == InvocationStateCompleted
}

func (invocation ShellInvocation) withDefaults() ShellInvocation {
	normalized := invocation
	if normalized.PollInterval <= 0 {
		normalized.PollInterval = DefaultPollInterval
	}
	if normalized.Timeout <= 0 {
		normalized.Timeout = DefaultTimeout
	}
	return normalized
}
