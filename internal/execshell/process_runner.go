package execshell

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	emptyCommandMessageConstant          = "command text is empty"
	processLaunchFailedMessageConstant   = "Failed to launch process"
	processTimedOutMessageConstant       = "Process did not exit before the timeout; no longer waiting for it"
	processWaitFailedMessageConstant     = "Failed to collect process exit status"
	processInternalFaultMessageConstant  = "Process runner fault"
	processProgressTemplateConstant      = "Waiting for process: %d seconds elapsed"
	processDetachedMessageConstant       = "Process continues in the background"
	processCompletedMessageConstant      = "Process exited"
	logFieldCommandConstant              = "command"
	logFieldWorkingDirectoryConstant     = "working_directory"
	logFieldElapsedSecondsConstant       = "elapsed_seconds"
	logFieldTimeoutSecondsConstant       = "timeout_seconds"
	logFieldExitCodeConstant             = "exit_code"
	logFieldProcessIdentifierConstant    = "pid"
	logFieldFaultConstant                = "fault"
	processInternalFaultTemplateConstant = "%v"
	unknownProcessValueConstant          = -1
)

// ProcessRunner launches shell command lines as child processes and supervises them by polling.
// It keeps no state between invocations.
type ProcessRunner struct {
	logger            *zap.Logger
	clock             clockwork.Clock
	detachGracePeriod time.Duration
}

// ProcessRunnerOption customizes a ProcessRunner.
type ProcessRunnerOption func(runner *ProcessRunner)

// WithClock replaces the clock used for polling and elapsed time accounting.
func WithClock(clock clockwork.Clock) ProcessRunnerOption {
	return func(runner *ProcessRunner) {
		if clock != nil {
			runner.clock = clock
		}
	}
}

// WithDetachGracePeriod replaces the grace period observed for detached invocations.
func WithDetachGracePeriod(gracePeriod time.Duration) ProcessRunnerOption {
	return func(runner *ProcessRunner) {
		if gracePeriod > 0 {
			runner.detachGracePeriod = gracePeriod
		}
	}
}

// NewProcessRunner constructs a runner that writes progress to the provided logger.
func NewProcessRunner(logger *zap.Logger, options ...ProcessRunnerOption) *ProcessRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := &ProcessRunner{
		logger:            logger,
		clock:             clockwork.NewRealClock(),
		detachGracePeriod: DefaultDetachGracePeriod,
	}
	for _, option := range options {
		if option != nil {
			option(runner)
		}
	}
	return runner
}

// Run executes the invocation and returns its result, or ErrNoResult when the process could not be
// launched, did not exit within the timeout, or the runner failed internally. A non-zero exit code
// is a result, not an error. Timed out processes are left running.
func (runner *ProcessRunner) Run(invocation ShellInvocation) (result InvocationResult, runError error) {
	normalizedInvocation := invocation.withDefaults()
	commandLogger := runner.logger.With(
		zap.String(logFieldCommandConstant, normalizedInvocation.CommandText),
		zap.String(logFieldWorkingDirectoryConstant, normalizedInvocation.WorkingDirectory),
	)

	defer func() {
		if recovered := recover(); recovered != nil {
			commandLogger.Error(processInternalFaultMessageConstant, zap.String(logFieldFaultConstant, fmt.Sprintf(processInternalFaultTemplateConstant, recovered)))
			result = InvocationResult{}
			runError = ErrNoResult
		}
	}()

	process, launchError := runner.launch(normalizedInvocation)
	if launchError != nil {
		commandLogger.Error(processLaunchFailedMessageConstant, zap.Error(launchError))
		return InvocationResult{}, ErrNoResult
	}
	commandLogger = commandLogger.With(zap.Int(logFieldProcessIdentifierConstant, process.processIdentifier()))

	if !normalizedInvocation.WaitForCompletion {
		return runner.observeDetached(commandLogger, process)
	}
	return runner.awaitCompletion(commandLogger, normalizedInvocation, process)
}

func (runner *ProcessRunner) launch(invocation ShellInvocation) (*supervisedProcess, error) {
	commandText := strings.TrimSpace(invocation.CommandText)
	if len(commandText) == 0 {
		return nil, errors.New(emptyCommandMessageConstant)
	}

	if validationError := validateCommandLine(commandText, invocation.WorkingDirectory); validationError != nil {
		return nil, validationError
	}

	executable := newShellCommand(commandText)
	if len(invocation.WorkingDirectory) > 0 {
		executable.Dir = invocation.WorkingDirectory
	}

	process := &supervisedProcess{executable: executable, exited: make(chan struct{})}
	executable.Stdout = &process.standardOutput
	executable.Stderr = &process.standardError

	if startError := executable.Start(); startError != nil {
		return nil, startError
	}

	go process.wait()

	return process, nil
}

func (runner *ProcessRunner) awaitCompletion(commandLogger *zap.Logger, invocation ShellInvocation, process *supervisedProcess) (InvocationResult, error) {
	startedAt := runner.clock.Now()
	for {
		runner.clock.Sleep(invocation.PollInterval)
		elapsed := runner.clock.Since(startedAt)

		if process.hasExited() {
			return runner.collect(commandLogger, process)
		}

		if elapsed >= invocation.Timeout {
			commandLogger.Warn(
				processTimedOutMessageConstant,
				zap.Int64(logFieldElapsedSecondsConstant, int64(elapsed/time.Second)),
				zap.Int64(logFieldTimeoutSecondsConstant, int64(invocation.Timeout/time.Second)),
			)
			return InvocationResult{}, ErrNoResult
		}

		elapsedSeconds := int64(elapsed / time.Second)
		commandLogger.Info(fmt.Sprintf(processProgressTemplateConstant, elapsedSeconds), zap.Int64(logFieldElapsedSecondsConstant, elapsedSeconds))
	}
}

func (runner *ProcessRunner) observeDetached(commandLogger *zap.Logger, process *supervisedProcess) (InvocationResult, error) {
	runner.clock.Sleep(runner.detachGracePeriod)

	if process.hasExited() {
		return runner.collect(commandLogger, process)
	}

	commandLogger.Info(processDetachedMessageConstant)
	return InvocationResult{
		State:          InvocationStateDetached,
		ExitCode:       0,
		StandardOutput: DetachedProcessMessage,
	}, nil
}

func (runner *ProcessRunner) collect(commandLogger *zap.Logger, process *supervisedProcess) (InvocationResult, error) {
	exitCode, exitError := process.exitCode()
	if exitError != nil {
		commandLogger.Error(processWaitFailedMessageConstant, zap.Error(exitError))
		return InvocationResult{}, ErrNoResult
	}

	commandLogger.Debug(processCompletedMessageConstant, zap.Int(logFieldExitCodeConstant, exitCode))
	return InvocationResult{
		State:          InvocationStateCompleted,
		ExitCode:       exitCode,
		StandardOutput: process.standardOutput.String(),
		StandardError:  process.standardError.String(),
	}, nil
}

// supervisedProcess tracks one launched child. The buffers are only read after exited is closed.
type supervisedProcess struct {
	executable     *exec.Cmd
	standardOutput bytes.Buffer
	standardError  bytes.Buffer
	exited         chan struct{}
	waitError      error
}

func (process *supervisedProcess) wait() {
	process.waitError = process.executable.Wait()
	close(process.exited)
}

func (process *supervisedProcess) hasExited() bool {
	select {
	case <-process.exited:
		return true
	default:
		return false
	}
}

func (process *supervisedProcess) processIdentifier() int {
	if process.executable.Process == nil {
		return unknownProcessValueConstant
	}
	return process.executable.Process.Pid
}

func (process *supervisedProcess) exitCode() (int, error) {
	if process.waitError == nil {
		return 0, nil
	}
	exitError := &exec.ExitError{}
	if errors.As(process.waitError, &exitError) {
		return exitError.ExitCode(), nil
	}
	return unknownProcessValueConstant, process.waitError
}
