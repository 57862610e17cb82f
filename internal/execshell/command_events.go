package execshell

// CommandEventObserver receives lifecycle notifications for shell command execution.
type CommandEventObserver interface {
	// CommandStarted notifies observers that command execution is beginning.
	CommandStarted(command ShellCommand)
	// CommandCompleted notifies observers that the command produced a result, including detached results.
	CommandCompleted(command ShellCommand, result InvocationResult)
	// CommandExecutionFailed reports commands that produced no result.
	CommandExecutionFailed(command ShellCommand, failure error)
}

type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, InvocationResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
