package execshell_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/witexport/internal/execshell"
)

const (
	testCollectionURLConstant   = "https://tfs.example.com/tfs/DefaultCollection"
	testExportWorkspaceConstant = "/srv/export"
)

func TestCommandMessageFormatterDescribesKnownCommands(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}
	testCases := []struct {
		name            string
		command         execshell.ShellCommand
		expectedStarted string
		expectedSuccess string
	}{
		{
			name: "git_clone",
			command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{
				Arguments: []string{"clone", "--branch", "main", "https://git.example.com/config.git", testExportWorkspaceConstant},
			}},
			expectedStarted: "Cloning https://git.example.com/config.git into /srv/export",
			expectedSuccess: "Cloned https://git.example.com/config.git into /srv/export",
		},
		{
			name: "git_commit",
			command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{
				Arguments:        []string{"commit", "-m", "Export configuration"},
				WorkingDirectory: testExportWorkspaceConstant,
			}},
			expectedStarted: `Creating commit "Export configuration" in /srv/export`,
			expectedSuccess: `Created commit "Export configuration" in /srv/export`,
		},
		{
			name: "git_push",
			command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{
				Arguments:        []string{"push", "origin", "main"},
				WorkingDirectory: testExportWorkspaceConstant,
			}},
			expectedStarted: "Pushing main to origin from /srv/export",
			expectedSuccess: "Pushed main to origin from /srv/export",
		},
		{
			name: "git_status_without_directory",
			command: execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{
				Arguments: []string{"status", "--porcelain"},
			}},
			expectedStarted: "Reviewing working tree status in current directory",
			expectedSuccess: "Collected working tree status for current directory",
		},
		{
			name: "witadmin_export_type",
			command: execshell.ShellCommand{Name: execshell.CommandWitAdmin, Details: execshell.CommandDetails{
				Arguments: []string{"exportwitd", "/collection:" + testCollectionURLConstant, "/p:Fabrikam", "/n:Bug", "/f:Bug.xml"},
			}},
			expectedStarted: "Exporting work item type Bug from Fabrikam to Bug.xml",
			expectedSuccess: "Exported work item type Bug from Fabrikam to Bug.xml",
		},
		{
			name: "witadmin_global_list",
			command: execshell.ShellCommand{Name: execshell.CommandWitAdmin, Details: execshell.CommandDetails{
				Arguments: []string{"exportgloballist", "/COLLECTION:" + testCollectionURLConstant, "/f:GlobalList.xml"},
			}},
			expectedStarted: "Exporting global list from " + testCollectionURLConstant,
			expectedSuccess: "Exported global list from " + testCollectionURLConstant,
		},
		{
			name: "witadmin_categories_without_project",
			command: execshell.ShellCommand{Name: execshell.CommandWitAdmin, Details: execshell.CommandDetails{
				Arguments: []string{"exportcategories"},
			}},
			expectedStarted: "Exporting categories for unknown",
			expectedSuccess: "Exported categories for unknown",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			completed := execshell.InvocationResult{State: execshell.InvocationStateCompleted}
			require.Equal(testInstance, testCase.expectedStarted, formatter.BuildStartedMessage(testCase.command))
			require.Equal(testInstance, testCase.expectedSuccess, formatter.BuildSuccessMessage(testCase.command, completed))
		})
	}
}

func TestCommandMessageFormatterFailures(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}
	pullCommand := execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{
		Arguments:        []string{"pull", "--ff-only"},
		WorkingDirectory: testExportWorkspaceConstant,
	}}

	require.Equal(testInstance,
		"Failed to pull latest changes into /srv/export (exit code 1: fatal: diverged)",
		formatter.BuildFailureMessage(pullCommand, execshell.InvocationResult{State: execshell.InvocationStateCompleted, ExitCode: 1, StandardError: "fatal: diverged\n"}),
	)
	require.Equal(testInstance,
		"Unable to pull latest changes into /srv/export: no result",
		formatter.BuildExecutionFailureMessage(pullCommand, execshell.ErrNoResult),
	)
	require.Equal(testInstance,
		"Unable to pull latest changes into /srv/export: unknown error",
		formatter.BuildExecutionFailureMessage(pullCommand, nil),
	)
}

func TestCommandMessageFormatterGenericCommands(testInstance *testing.T) {
	formatter := execshell.CommandMessageFormatter{}
	command := execshell.ShellCommand{Name: execshell.CommandGit, Details: execshell.CommandDetails{
		Arguments:        []string{"gc"},
		WorkingDirectory: testExportWorkspaceConstant,
	}}

	require.Equal(testInstance, "Running git gc (in /srv/export)", formatter.BuildStartedMessage(command))
	require.Equal(testInstance, "Completed git gc (in /srv/export)", formatter.BuildSuccessMessage(command, execshell.InvocationResult{State: execshell.InvocationStateCompleted}))
	require.Equal(testInstance, "git gc (in /srv/export) continues in the background", formatter.BuildSuccessMessage(command, execshell.InvocationResult{State: execshell.InvocationStateDetached}))
	require.Equal(testInstance, "git gc (in /srv/export) failed with exit code 2: broken", formatter.BuildFailureMessage(command, execshell.InvocationResult{ExitCode: 2, StandardError: "broken"}))
	require.Equal(testInstance, "git gc (in /srv/export) failed: boom", formatter.BuildExecutionFailureMessage(command, errors.New("boom")))
}
