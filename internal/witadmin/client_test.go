package witadmin_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/witexport/internal/execshell"
	"github.com/temirov/witexport/internal/witadmin"
)

const (
	testExecutablePathConstant = "/opt/witadmin/witadmin.exe"
	testCollectionURLConstant  = "https://tfs.example.com/tfs/DefaultCollection"
	testCollectionArgument     = "/collection:" + testCollectionURLConstant
	testProjectConstant        = "Fabrikam Fiber"
	testProjectArgument        = "/p:" + testProjectConstant
)

type recordedWitAdminCall struct {
	executablePath string
	details        execshell.CommandDetails
}

type recordingWitAdminExecutor struct {
	result execshell.InvocationResult
	err    error
	calls  []recordedWitAdminCall
}

func (executor *recordingWitAdminExecutor) ExecuteWitAdmin(_ context.Context, executablePath string, details execshell.CommandDetails) (execshell.InvocationResult, error) {
	executor.calls = append(executor.calls, recordedWitAdminCall{executablePath: executablePath, details: details})
	return executor.result, executor.err
}

func TestNewClientValidation(testInstance *testing.T) {
	testCases := []struct {
		name           string
		executor       witadmin.Executor
		executablePath string
		collectionURL  string
		expectedError  error
	}{
		{name: "missing_executor", executablePath: testExecutablePathConstant, collectionURL: testCollectionURLConstant, expectedError: witadmin.ErrExecutorNotConfigured},
		{name: "missing_executable", executor: &recordingWitAdminExecutor{}, executablePath: " ", collectionURL: testCollectionURLConstant, expectedError: witadmin.ErrExecutablePathRequired},
		{name: "missing_collection", executor: &recordingWitAdminExecutor{}, executablePath: testExecutablePathConstant, expectedError: witadmin.ErrCollectionURLRequired},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := witadmin.NewClient(testCase.executor, testCase.executablePath, testCase.collectionURL)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
			require.Nil(testInstance, client)
		})
	}
}

func TestClientBuildsExportCommands(testInstance *testing.T) {
	testCases := []struct {
		name              string
		invoke            func(client *witadmin.Client) error
		expectedArguments []string
	}{
		{
			name: "export_work_item_type",
			invoke: func(client *witadmin.Client) error {
				return client.ExportWorkItemType(context.Background(), testProjectConstant, "Product Backlog Item", "/srv/export/Fabrikam Fiber/WorkItemTypes/Product Backlog Item.xml")
			},
			expectedArguments: []string{"exportwitd", testCollectionArgument, testProjectArgument, "/n:Product Backlog Item", "/f:/srv/export/Fabrikam Fiber/WorkItemTypes/Product Backlog Item.xml"},
		},
		{
			name: "export_categories",
			invoke: func(client *witadmin.Client) error {
				return client.ExportCategories(context.Background(), testProjectConstant, "/srv/export/Categories.xml")
			},
			expectedArguments: []string{"exportcategories", testCollectionArgument, testProjectArgument, "/f:/srv/export/Categories.xml"},
		},
		{
			name: "export_process_configuration",
			invoke: func(client *witadmin.Client) error {
				return client.ExportProcessConfiguration(context.Background(), testProjectConstant, "/srv/export/ProcessConfiguration.xml")
			},
			expectedArguments: []string{"exportprocessconfig", testCollectionArgument, testProjectArgument, "/f:/srv/export/ProcessConfiguration.xml"},
		},
		{
			name: "export_global_list",
			invoke: func(client *witadmin.Client) error {
				return client.ExportGlobalList(context.Background(), "/srv/export/GlobalList.xml")
			},
			expectedArguments: []string{"exportgloballist", testCollectionArgument, "/f:/srv/export/GlobalList.xml"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			executor := &recordingWitAdminExecutor{result: execshell.InvocationResult{State: execshell.InvocationStateCompleted}}
			client, creationError := witadmin.NewClient(executor, testExecutablePathConstant, testCollectionURLConstant, witadmin.WithCommandLimits(time.Second, 5*time.Minute))
			require.NoError(testInstance, creationError)

			require.NoError(testInstance, testCase.invoke(client))
			require.Len(testInstance, executor.calls, 1)
			require.Equal(testInstance, testExecutablePathConstant, executor.calls[0].executablePath)
			require.Equal(testInstance, execshell.CommandDetails{
				Arguments:    testCase.expectedArguments,
				PollInterval: time.Second,
				Timeout:      5 * time.Minute,
			}, executor.calls[0].details)
		})
	}
}

func TestClientListWorkItemTypes(testInstance *testing.T) {
	executor := &recordingWitAdminExecutor{result: execshell.InvocationResult{
		State:          execshell.InvocationStateCompleted,
		StandardOutput: "Bug\r\nTask\r\n\r\n  Product Backlog Item  \r\nFeature\r\n",
	}}
	client, creationError := witadmin.NewClient(executor, testExecutablePathConstant, testCollectionURLConstant)
	require.NoError(testInstance, creationError)

	names, listError := client.ListWorkItemTypes(context.Background(), testProjectConstant)
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []string{"Bug", "Task", "Product Backlog Item", "Feature"}, names)
	require.Equal(testInstance, []string{"listwitd", testCollectionArgument, testProjectArgument}, executor.calls[0].details.Arguments)
}

func TestClientRejectsMissingInputs(testInstance *testing.T) {
	executor := &recordingWitAdminExecutor{}
	client, creationError := witadmin.NewClient(executor, testExecutablePathConstant, testCollectionURLConstant)
	require.NoError(testInstance, creationError)

	_, listError := client.ListWorkItemTypes(context.Background(), "")
	require.ErrorIs(testInstance, listError, witadmin.ErrProjectRequired)
	require.ErrorIs(testInstance, client.ExportWorkItemType(context.Background(), testProjectConstant, " ", "Bug.xml"), witadmin.ErrWorkItemTypeRequired)
	require.ErrorIs(testInstance, client.ExportWorkItemType(context.Background(), testProjectConstant, "Bug", ""), witadmin.ErrOutputFileRequired)
	require.ErrorIs(testInstance, client.ExportCategories(context.Background(), "", "Categories.xml"), witadmin.ErrProjectRequired)
	require.ErrorIs(testInstance, client.ExportGlobalList(context.Background(), " "), witadmin.ErrOutputFileRequired)
	require.Empty(testInstance, executor.calls)
}

func TestClientWrapsExecutorFailures(testInstance *testing.T) {
	failure := execshell.CommandFailedError{Result: execshell.InvocationResult{State: execshell.InvocationStateCompleted, ExitCode: 1, StandardError: "TF212018: project not found"}}
	executor := &recordingWitAdminExecutor{err: failure}
	client, creationError := witadmin.NewClient(executor, testExecutablePathConstant, testCollectionURLConstant)
	require.NoError(testInstance, creationError)

	exportError := client.ExportCategories(context.Background(), testProjectConstant, "Categories.xml")
	var failedError execshell.CommandFailedError
	require.True(testInstance, errors.As(exportError, &failedError))
	require.Equal(testInstance, 1, failedError.Result.ExitCode)
	require.Contains(testInstance, exportError.Error(), "witadmin exportcategories failed")
}
