package tools

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/witexport/internal/execshell"
	flagutils "github.com/temirov/witexport/internal/utils/flags"
)

const (
	execUseConstant                = "exec -- <command line>"
	execShortDescriptionConstant   = "Run a command line through the process runner"
	execLongDescriptionConstant    = "exec runs the given command line through the host shell with the same supervision the export uses, then prints its standard output, standard error, and exit code."
	execDirectoryFlagNameConstant  = "dir"
	execDirectoryFlagUsageConstant = "Working directory for the command"
	execDetachFlagNameConstant     = "detach"
	execDetachFlagUsageConstant    = "Return after the grace period instead of waiting for the command to exit"
	execPollFlagNameConstant       = "poll-interval"
	execPollFlagUsageConstant      = "How often to check whether the command has exited"
	execTimeoutFlagNameConstant    = "timeout"
	execTimeoutFlagUsageConstant   = "How long to wait for the command before giving up on it"
	execArgumentSeparatorConstant  = " "
	execExitCodeTemplateConstant   = "exit code: %d\n"
	execDetachedTemplateConstant   = "detached: %s\n"
	execNoResultOutputConstant     = "no result\n"
	execExitStatusTemplateConstant = "command exited with code %d"
)

// ExitStatusError carries a non-zero exit code of the executed command.
type ExitStatusError struct {
	Code int
}

// Error describes the exit status.
func (statusError ExitStatusError) Error() string {
	return fmt.Sprintf(execExitStatusTemplateConstant, statusError.Code)
}

// ExitCode returns the exit code the CLI should terminate with.
func (statusError ExitStatusError) ExitCode() int {
	return statusError.Code
}

// RunnerProvider constructs the runner used by exec.
type RunnerProvider func(logger *zap.Logger) execshell.CommandRunner

// ExecCommandBuilder assembles the exec command.
type ExecCommandBuilder struct {
	LoggerProvider LoggerProvider
	RunnerProvider RunnerProvider
}

// Build constructs the exec command.
func (builder *ExecCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           execUseConstant,
		Short:         execShortDescriptionConstant,
		Long:          execLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.MinimumNArgs(1),
		RunE:          builder.run,
	}

	command.Flags().String(execDirectoryFlagNameConstant, "", execDirectoryFlagUsageConstant)
	var detach bool
	flagutils.AddToggleFlag(command.Flags(), &detach, execDetachFlagNameConstant, false, execDetachFlagUsageConstant)
	command.Flags().Duration(execPollFlagNameConstant, execshell.DefaultPollInterval, execPollFlagUsageConstant)
	command.Flags().Duration(execTimeoutFlagNameConstant, execshell.DefaultTimeout, execTimeoutFlagUsageConstant)

	return command, nil
}

func (builder *ExecCommandBuilder) run(command *cobra.Command, arguments []string) error {
	workingDirectory, _ := command.Flags().GetString(execDirectoryFlagNameConstant)
	detach, _ := command.Flags().GetBool(execDetachFlagNameConstant)
	pollInterval, _ := command.Flags().GetDuration(execPollFlagNameConstant)
	timeout, _ := command.Flags().GetDuration(execTimeoutFlagNameConstant)

	runner := builder.resolveRunner(resolveLogger(builder.LoggerProvider))
	result, runError := runner.Run(execshell.ShellInvocation{
		CommandText:       strings.Join(arguments, execArgumentSeparatorConstant),
		WorkingDirectory:  strings.TrimSpace(workingDirectory),
		WaitForCompletion: !detach,
		PollInterval:      pollInterval,
		Timeout:           timeout,
	})
	if runError != nil {
		fmt.Fprint(command.ErrOrStderr(), execNoResultOutputConstant)
		return runError
	}

	if !result.Completed() {
		fmt.Fprintf(command.OutOrStdout(), execDetachedTemplateConstant, result.StandardOutput)
		return nil
	}

	fmt.Fprint(command.OutOrStdout(), result.StandardOutput)
	fmt.Fprint(command.ErrOrStderr(), result.StandardError)

	fmt.Fprintf(command.OutOrStdout(), execExitCodeTemplateConstant, result.ExitCode)
	if result.ExitCode != 0 {
		return ExitStatusError{Code: result.ExitCode}
	}
	return nil
}

func (builder *ExecCommandBuilder) resolveRunner(logger *zap.Logger) execshell.CommandRunner {
	if builder.RunnerProvider != nil {
		if runner := builder.RunnerProvider(logger); runner != nil {
			return runner
		}
	}
	return execshell.NewProcessRunner(logger)
}
