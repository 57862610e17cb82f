package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor requires a logger"
	commandRunnerNotConfiguredMessageConstant = "shell executor requires a command runner"
	commandExecutionErrorTemplateConstant     = "%s: %v"
	commandLineSeparatorConstant              = " "
	logFieldCommandNameConstant               = "command_name"
	logFieldCommandLineConstant               = "command_line"
	logFieldInvocationStateConstant           = "state"
)

// CommandName identifies a supported external tool.
type CommandName string

// Supported tools.
const (
	CommandGit      CommandName = CommandName("git")
	CommandWitAdmin CommandName = CommandName("witadmin")
)

// ErrLoggerNotConfigured indicates that NewShellExecutor received a nil logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured indicates that NewShellExecutor received a nil runner.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// CommandDetails describes arguments and supervision settings for a tool invocation.
type CommandDetails struct {
	Arguments        []string
	WorkingDirectory string
	Detach           bool
	PollInterval     time.Duration
	Timeout          time.Duration
}

// ShellCommand pairs a tool with invocation details. ExecutablePath overrides the tool name when set.
type ShellCommand struct {
	Name           CommandName
	ExecutablePath string
	Details        CommandDetails
}

// CommandLine renders the command as a host shell command line.
func (command ShellCommand) CommandLine() string {
	executable := strings.TrimSpace(command.ExecutablePath)
	if len(executable) == 0 {
		executable = string(command.Name)
	}
	parts := make([]string, 0, len(command.Details.Arguments)+1)
	parts = append(parts, QuoteArgument(executable))
	for _, argument := range command.Details.Arguments {
		parts = append(parts, QuoteArgument(argument))
	}
	return strings.Join(parts, commandLineSeparatorConstant)
}

// CommandRunner runs a single shell invocation.
type CommandRunner interface {
	Run(invocation ShellInvocation) (InvocationResult, error)
}

// CommandFailedError reports a command that completed with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  InvocationResult
}

// Error describes the failed command.
func (failure CommandFailedError) Error() string {
	return CommandMessageFormatter{}.BuildFailureMessage(failure.Command, failure.Result)
}

// CommandExecutionError reports a command that produced no result. Cause is ErrNoResult for runner
// failures or the context error when the command was never launched.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, failure.Command.CommandLine(), failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ShellExecutor runs tool commands through a CommandRunner and interprets their exit codes.
type ShellExecutor struct {
	logger   *zap.Logger
	runner   CommandRunner
	observer CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor. A nil observer discards lifecycle events.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, observer CommandEventObserver) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	if observer == nil {
		observer = noopCommandEventObserver{}
	}
	return &ShellExecutor{logger: logger, runner: runner, observer: observer}, nil
}

// Execute runs the command. Completed commands with non-zero exit codes return CommandFailedError;
// commands without a result return CommandExecutionError. Detached results are successful.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (InvocationResult, error) {
	commandLine := command.CommandLine()
	commandLogger := executor.logger.With(
		zap.String(logFieldCommandNameConstant, string(command.Name)),
		zap.String(logFieldCommandLineConstant, commandLine),
	)

	if executionContext != nil {
		if contextError := executionContext.Err(); contextError != nil {
			executor.observer.CommandExecutionFailed(command, contextError)
			return InvocationResult{}, CommandExecutionError{Command: command, Cause: contextError}
		}
	}

	executor.observer.CommandStarted(command)
	commandLogger.Debug(CommandMessageFormatter{}.BuildStartedMessage(command))

	result, runError := executor.runner.Run(ShellInvocation{
		CommandText:       commandLine,
		WorkingDirectory:  command.Details.WorkingDirectory,
		WaitForCompletion: !command.Details.Detach,
		PollInterval:      command.Details.PollInterval,
		Timeout:           command.Details.Timeout,
	})
	if runError != nil {
		executor.observer.CommandExecutionFailed(command, runError)
		commandLogger.Error(CommandMessageFormatter{}.BuildExecutionFailureMessage(command, runError))
		return InvocationResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, result)
	if result.Completed() && result.ExitCode != 0 {
		commandLogger.Warn(CommandMessageFormatter{}.BuildFailureMessage(command, result))
		return InvocationResult{}, CommandFailedError{Command: command, Result: result}
	}

	commandLogger.Debug(CommandMessageFormatter{}.BuildSuccessMessage(command, result), zap.String(logFieldInvocationStateConstant, string(result.State)))
	return result, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (InvocationResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteWitAdmin runs the witadmin tool located at executablePath with the provided details.
func (executor *ShellExecutor) ExecuteWitAdmin(executionContext context.Context, executablePath string, details CommandDetails) (InvocationResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandWitAdmin, ExecutablePath: executablePath, Details: details})
}
