package tools_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/witexport/cmd/cli/tools"
	"github.com/temirov/witexport/internal/execshell"
)

type scriptedRunner struct {
	result      execshell.InvocationResult
	err         error
	invocations []execshell.ShellInvocation
}

func (runner *scriptedRunner) Run(invocation execshell.ShellInvocation) (execshell.InvocationResult, error) {
	runner.invocations = append(runner.invocations, invocation)
	return runner.result, runner.err
}

func executeExecCommand(testInstance *testing.T, runner *scriptedRunner, arguments ...string) (string, string, error) {
	testInstance.Helper()
	builder := tools.ExecCommandBuilder{
		LoggerProvider: func() *zap.Logger { return zap.NewNop() },
		RunnerProvider: func(*zap.Logger) execshell.CommandRunner { return runner },
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	standardOutput := &bytes.Buffer{}
	standardError := &bytes.Buffer{}
	command.SetContext(context.Background())
	command.SetOut(standardOutput)
	command.SetErr(standardError)
	command.SetArgs(arguments)
	executionError := command.Execute()
	return standardOutput.String(), standardError.String(), executionError
}

func TestExecCommandBuildsInvocation(testInstance *testing.T) {
	testCases := []struct {
		name               string
		arguments          []string
		expectedInvocation execshell.ShellInvocation
	}{
		{
			name:      "defaults",
			arguments: []string{"--", "git", "status", "--porcelain"},
			expectedInvocation: execshell.ShellInvocation{
				CommandText:       "git status --porcelain",
				WaitForCompletion: true,
				PollInterval:      execshell.DefaultPollInterval,
				Timeout:           execshell.DefaultTimeout,
			},
		},
		{
			name:      "explicit_supervision",
			arguments: []string{"--dir", "/srv/export", "--detach", "--poll-interval", "250ms", "--timeout", "30s", "--", "git push origin main"},
			expectedInvocation: execshell.ShellInvocation{
				CommandText:       "git push origin main",
				WorkingDirectory:  "/srv/export",
				WaitForCompletion: false,
				PollInterval:      250 * time.Millisecond,
				Timeout:           30 * time.Second,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			runner := &scriptedRunner{result: execshell.InvocationResult{State: execshell.InvocationStateCompleted}}
			_, _, executionError := executeExecCommand(testInstance, runner, testCase.arguments...)
			require.NoError(testInstance, executionError)
			require.Equal(testInstance, []execshell.ShellInvocation{testCase.expectedInvocation}, runner.invocations)
		})
	}
}

func TestExecCommandReportsOutcome(testInstance *testing.T) {
	testCases := []struct {
		name                   string
		runner                 *scriptedRunner
		expectedStandardOutput string
		expectedStandardError  string
		verifyError            func(testInstance *testing.T, executionError error)
	}{
		{
			name: "completed_successfully",
			runner: &scriptedRunner{result: execshell.InvocationResult{
				State:          execshell.InvocationStateCompleted,
				StandardOutput: "On branch main\n",
			}},
			expectedStandardOutput: "On branch main\nexit code: 0\n",
			verifyError: func(testInstance *testing.T, executionError error) {
				require.NoError(testInstance, executionError)
			},
		},
		{
			name: "completed_with_failure",
			runner: &scriptedRunner{result: execshell.InvocationResult{
				State:         execshell.InvocationStateCompleted,
				ExitCode:      128,
				StandardError: "fatal: not a git repository\n",
			}},
			expectedStandardOutput: "exit code: 128\n",
			expectedStandardError:  "fatal: not a git repository\n",
			verifyError: func(testInstance *testing.T, executionError error) {
				var statusError tools.ExitStatusError
				require.True(testInstance, errors.As(executionError, &statusError))
				require.Equal(testInstance, 128, statusError.ExitCode())
			},
		},
		{
			name: "detached",
			runner: &scriptedRunner{result: execshell.InvocationResult{
				State:          execshell.InvocationStateDetached,
				StandardOutput: execshell.DetachedProcessMessage,
			}},
			expectedStandardOutput: "detached: " + execshell.DetachedProcessMessage + "\n",
			verifyError: func(testInstance *testing.T, executionError error) {
				require.NoError(testInstance, executionError)
			},
		},
		{
			name:                  "no_result",
			runner:                &scriptedRunner{err: execshell.ErrNoResult},
			expectedStandardError: "no result\n",
			verifyError: func(testInstance *testing.T, executionError error) {
				require.ErrorIs(testInstance, executionError, execshell.ErrNoResult)
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			standardOutput, standardError, executionError := executeExecCommand(testInstance, testCase.runner, "--", "git", "status")
			require.Equal(testInstance, testCase.expectedStandardOutput, standardOutput)
			require.Equal(testInstance, testCase.expectedStandardError, standardError)
			testCase.verifyError(testInstance, executionError)
		})
	}
}

func TestExecCommandRequiresCommandLine(testInstance *testing.T) {
	runner := &scriptedRunner{}
	_, _, executionError := executeExecCommand(testInstance, runner)
	require.Error(testInstance, executionError)
	require.Empty(testInstance, runner.invocations)
}
