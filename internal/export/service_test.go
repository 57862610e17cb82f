package export_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/witexport/internal/export"
)

const (
	testCollectionURLConstant    = "https://tfs.example.com/tfs/DefaultCollection"
	testRepositoryURLConstant    = "https://tfs.example.com/tfs/DefaultCollection/_git/ProcessConfig"
	testWorkspaceConstant        = "/srv/export"
	testToolPathConstant         = "/opt/witadmin/witadmin.exe"
	testRunIdentifierConstant    = "run-0001"
	testPrimaryProjectConstant   = "Fabrikam Fiber"
	testSecondaryProjectConstant = "Contoso"
	testExportedContentConstant  = "<witd/>"
	testRetiredArtifactConstant  = "Contoso/WorkItemTypes/Retired.xml"
)

var testRunStartedAt = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeRepository struct {
	isRepository   bool
	pendingChanges bool
	failures       map[string]error
	calls          []string
	commitMessages []string
	pushes         []string
}

func (repository *fakeRepository) record(operation string) error {
	repository.calls = append(repository.calls, operation)
	return repository.failures[operation]
}

func (repository *fakeRepository) IsRepository(string) (bool, error) {
	return repository.isRepository, repository.record("is-repository")
}

func (repository *fakeRepository) Clone(_ context.Context, remoteURL string, branch string, repositoryPath string) error {
	return repository.record(fmt.Sprintf("clone %s %s %s", remoteURL, branch, repositoryPath))
}

func (repository *fakeRepository) Pull(context.Context, string) error {
	return repository.record("pull")
}

func (repository *fakeRepository) StageAll(context.Context, string) error {
	return repository.record("stage")
}

func (repository *fakeRepository) HasPendingChanges(context.Context, string) (bool, error) {
	return repository.pendingChanges, repository.record("status")
}

func (repository *fakeRepository) Commit(_ context.Context, _ string, message string) error {
	repository.commitMessages = append(repository.commitMessages, message)
	return repository.record("commit")
}

func (repository *fakeRepository) Push(_ context.Context, _ string, remoteName string, branch string) error {
	repository.pushes = append(repository.pushes, remoteName+" "+branch)
	return repository.record("push")
}

type fakeExporter struct {
	fileSystem    afero.Fs
	workItemTypes map[string][]string
	failures      map[string]error
	outputFiles   []string
}

func (exporter *fakeExporter) write(operation string, outputFile string) error {
	if failure, failing := exporter.failures[operation]; failing {
		return failure
	}
	exporter.outputFiles = append(exporter.outputFiles, outputFile)
	return afero.WriteFile(exporter.fileSystem, outputFile, []byte(testExportedContentConstant), 0o644)
}

func (exporter *fakeExporter) ListWorkItemTypes(_ context.Context, project string) ([]string, error) {
	if failure, failing := exporter.failures["list:"+project]; failing {
		return nil, failure
	}
	return exporter.workItemTypes[project], nil
}

func (exporter *fakeExporter) ExportWorkItemType(_ context.Context, project string, typeName string, outputFile string) error {
	return exporter.write("type:"+project+":"+typeName, outputFile)
}

func (exporter *fakeExporter) ExportCategories(_ context.Context, project string, outputFile string) error {
	return exporter.write("categories:"+project, outputFile)
}

func (exporter *fakeExporter) ExportProcessConfiguration(_ context.Context, project string, outputFile string) error {
	return exporter.write("process:"+project, outputFile)
}

func (exporter *fakeExporter) ExportGlobalList(_ context.Context, outputFile string) error {
	return exporter.write("globallist", outputFile)
}

type staticLocator struct {
	path string
	err  error
}

func (locator staticLocator) Locate() (string, error) {
	return locator.path, locator.err
}

type serviceFixture struct {
	fileSystem     afero.Fs
	repository     *fakeRepository
	exporter       *fakeExporter
	locator        staticLocator
	observedLogs   *observer.ObservedLogs
	configuredTool []string
	exporterTool   []string
}

func newServiceFixture() *serviceFixture {
	fileSystem := afero.NewMemMapFs()
	return &serviceFixture{
		fileSystem: fileSystem,
		repository: &fakeRepository{pendingChanges: true, failures: map[string]error{}},
		exporter: &fakeExporter{
			fileSystem: fileSystem,
			workItemTypes: map[string][]string{
				testPrimaryProjectConstant:   {"Bug", "Test Case/Plan"},
				testSecondaryProjectConstant: {"Task"},
			},
			failures: map[string]error{},
		},
		locator: staticLocator{path: testToolPathConstant},
	}
}

func (fixture *serviceFixture) newService(testInstance *testing.T) *export.Service {
	testInstance.Helper()
	observerCore, observedLogs := observer.New(zap.DebugLevel)
	fixture.observedLogs = observedLogs

	service, creationError := export.NewService(export.ServiceDependencies{
		Logger:     zap.New(observerCore),
		Repository: fixture.repository,
		ToolLocatorFactory: func(configuredPath string) export.ToolLocator {
			fixture.configuredTool = append(fixture.configuredTool, configuredPath)
			return fixture.locator
		},
		ExporterFactory: func(executablePath string, _ export.Configuration) (export.WorkItemExporter, error) {
			fixture.exporterTool = append(fixture.exporterTool, executablePath)
			return fixture.exporter, nil
		},
		FileSystem:             fixture.fileSystem,
		Clock:                  clockwork.NewFakeClockAt(testRunStartedAt),
		RunIdentifierGenerator: func() string { return testRunIdentifierConstant },
	})
	require.NoError(testInstance, creationError)
	return service
}

func testConfiguration() export.Configuration {
	configuration := export.DefaultConfiguration()
	configuration.CollectionURL = testCollectionURLConstant
	configuration.Projects = []string{testPrimaryProjectConstant, testSecondaryProjectConstant}
	configuration.RepositoryURL = testRepositoryURLConstant
	configuration.Workspace = testWorkspaceConstant
	configuration.ToolPath = testToolPathConstant
	return configuration
}

func absoluteWorkspace(testInstance *testing.T) string {
	testInstance.Helper()
	workspace, absoluteError := filepath.Abs(testWorkspaceConstant)
	require.NoError(testInstance, absoluteError)
	return workspace
}

func TestNewServiceValidation(testInstance *testing.T) {
	locatorFactory := func(string) export.ToolLocator { return staticLocator{} }
	exporterFactory := func(string, export.Configuration) (export.WorkItemExporter, error) { return nil, nil }

	testCases := []struct {
		name          string
		dependencies  export.ServiceDependencies
		expectedError error
	}{
		{
			name:          "missing_repository",
			dependencies:  export.ServiceDependencies{ToolLocatorFactory: locatorFactory, ExporterFactory: exporterFactory},
			expectedError: export.ErrRepositoryNotConfigured,
		},
		{
			name:          "missing_locator",
			dependencies:  export.ServiceDependencies{Repository: &fakeRepository{}, ExporterFactory: exporterFactory},
			expectedError: export.ErrToolLocatorNotConfigured,
		},
		{
			name:          "missing_exporter_factory",
			dependencies:  export.ServiceDependencies{Repository: &fakeRepository{}, ToolLocatorFactory: locatorFactory},
			expectedError: export.ErrExporterFactoryNotConfigured,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			service, creationError := export.NewService(testCase.dependencies)
			require.ErrorIs(testInstance, creationError, testCase.expectedError)
			require.Nil(testInstance, service)
		})
	}
}

func TestServiceRunExportsCommitsAndPushes(testInstance *testing.T) {
	fixture := newServiceFixture()
	service := fixture.newService(testInstance)
	workspace := absoluteWorkspace(testInstance)

	report, runError := service.Run(context.Background(), testConfiguration())
	require.NoError(testInstance, runError)

	require.Equal(testInstance, testRunIdentifierConstant, report.RunIdentifier)
	require.Equal(testInstance, workspace, report.Workspace)
	require.True(testInstance, report.Committed)
	require.Empty(testInstance, report.Failures)
	require.Equal(testInstance, []string{
		"GlobalList.xml",
		"Fabrikam Fiber/WorkItemTypes/Bug.xml",
		"Fabrikam Fiber/WorkItemTypes/Test Case_Plan.xml",
		"Fabrikam Fiber/Categories.xml",
		"Fabrikam Fiber/ProcessConfiguration.xml",
		"Contoso/WorkItemTypes/Task.xml",
		"Contoso/Categories.xml",
		"Contoso/ProcessConfiguration.xml",
	}, report.Artifacts)

	require.Equal(testInstance, []string{
		"is-repository",
		fmt.Sprintf("clone %s main %s", testRepositoryURLConstant, workspace),
		"stage",
		"status",
		"commit",
		"push",
	}, fixture.repository.calls)
	require.Equal(testInstance, []string{"Export work item configuration 2026-03-01T12:00:00Z (run run-0001)"}, fixture.repository.commitMessages)
	require.Equal(testInstance, []string{"origin main"}, fixture.repository.pushes)
	require.Equal(testInstance, []string{testToolPathConstant}, fixture.configuredTool)
	require.Equal(testInstance, []string{testToolPathConstant}, fixture.exporterTool)
	require.Contains(testInstance, fixture.exporter.outputFiles, filepath.Join(workspace, "Fabrikam Fiber", "WorkItemTypes", "Bug.xml"))

	manifest, found, loadError := export.LoadManifest(fixture.fileSystem, filepath.Join(workspace, "export-manifest.yaml"), export.ManifestFormatYAML)
	require.NoError(testInstance, loadError)
	require.True(testInstance, found)
	require.Equal(testInstance, testRunIdentifierConstant, manifest.RunIdentifier)
	require.True(testInstance, testRunStartedAt.Equal(manifest.GeneratedAt))
	require.Len(testInstance, manifest.Artifacts, len(report.Artifacts))

	require.NotEmpty(testInstance, fixture.observedLogs.All())
	for _, entry := range fixture.observedLogs.All() {
		require.Equal(testInstance, testRunIdentifierConstant, entry.ContextMap()["run_id"], entry.Message)
	}
}

func TestServiceRunPullsExistingWorkspace(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.repository.isRepository = true
	service := fixture.newService(testInstance)

	configuration := testConfiguration()
	configuration.RepositoryURL = ""
	_, runError := service.Run(context.Background(), configuration)
	require.NoError(testInstance, runError)
	require.Equal(testInstance, []string{"is-repository", "pull", "stage", "status", "commit", "push"}, fixture.repository.calls)
}

func TestServiceRunSkipsCommitWithoutChanges(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.repository.isRepository = true
	fixture.repository.pendingChanges = false
	service := fixture.newService(testInstance)

	report, runError := service.Run(context.Background(), testConfiguration())
	require.NoError(testInstance, runError)
	require.False(testInstance, report.Committed)
	require.Equal(testInstance, []string{"is-repository", "pull", "stage", "status"}, fixture.repository.calls)
}

func TestServiceRunAbortsOnFirstFailure(testInstance *testing.T) {
	categoriesFailure := errors.New("TF201063: access denied")
	fixture := newServiceFixture()
	fixture.exporter.failures["categories:"+testPrimaryProjectConstant] = categoriesFailure
	service := fixture.newService(testInstance)

	report, runError := service.Run(context.Background(), testConfiguration())
	require.ErrorIs(testInstance, runError, categoriesFailure)
	require.False(testInstance, report.Committed)
	require.NotContains(testInstance, fixture.repository.calls, "stage")
	require.NotContains(testInstance, report.Artifacts, "Contoso/Categories.xml")

	exists, existsError := afero.Exists(fixture.fileSystem, filepath.Join(absoluteWorkspace(testInstance), "export-manifest.yaml"))
	require.NoError(testInstance, existsError)
	require.False(testInstance, exists)
}

func TestServiceRunContinuesOnErrorWhenConfigured(testInstance *testing.T) {
	listingFailure := errors.New("TF30063: not authorized")
	fixture := newServiceFixture()
	fixture.exporter.failures["list:"+testPrimaryProjectConstant] = listingFailure
	fixture.exporter.failures["process:"+testSecondaryProjectConstant] = listingFailure
	service := fixture.newService(testInstance)

	configuration := testConfiguration()
	configuration.ContinueOnError = true
	report, runError := service.Run(context.Background(), configuration)

	require.ErrorIs(testInstance, runError, listingFailure)
	var aggregated *multierror.Error
	require.True(testInstance, errors.As(runError, &aggregated))
	require.Len(testInstance, aggregated.Errors, 2)
	require.Len(testInstance, report.Failures, 2)
	require.True(testInstance, report.Committed)
	require.Equal(testInstance, []string{
		"GlobalList.xml",
		"Contoso/WorkItemTypes/Task.xml",
		"Contoso/Categories.xml",
	}, report.Artifacts)

	manifest, found, loadError := export.LoadManifest(fixture.fileSystem, filepath.Join(absoluteWorkspace(testInstance), "export-manifest.yaml"), export.ManifestFormatYAML)
	require.NoError(testInstance, loadError)
	require.True(testInstance, found)
	require.Equal(testInstance, report.Failures, manifest.Failures)
}

func TestServiceRunStopsOnCancellationEvenWhenContinuing(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.exporter.failures["globallist"] = fmt.Errorf("witadmin exportgloballist failed: %w", context.Canceled)
	service := fixture.newService(testInstance)

	configuration := testConfiguration()
	configuration.ContinueOnError = true
	_, runError := service.Run(context.Background(), configuration)
	require.ErrorIs(testInstance, runError, context.Canceled)
	require.Empty(testInstance, fixture.exporter.outputFiles)
}

func TestServiceRunRemovesStaleArtifacts(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.repository.isRepository = true
	workspace := absoluteWorkspace(testInstance)

	retiredPath := filepath.Join(workspace, filepath.FromSlash(testRetiredArtifactConstant))
	require.NoError(testInstance, afero.WriteFile(fixture.fileSystem, retiredPath, []byte(testExportedContentConstant), 0o644))
	require.NoError(testInstance, export.WriteManifest(fixture.fileSystem, filepath.Join(workspace, "export-manifest.yaml"), export.ManifestFormatYAML, export.Manifest{
		RunIdentifier: "run-0000",
		Artifacts:     []string{"GlobalList.xml", testRetiredArtifactConstant, "../outside.xml"},
	}))

	service := fixture.newService(testInstance)
	report, runError := service.Run(context.Background(), testConfiguration())
	require.NoError(testInstance, runError)

	require.Equal(testInstance, []string{testRetiredArtifactConstant}, report.RemovedArtifacts)
	exists, existsError := afero.Exists(fixture.fileSystem, retiredPath)
	require.NoError(testInstance, existsError)
	require.False(testInstance, exists)
}

func TestServiceRunKeepsArtifactsWhenStepsFailed(testInstance *testing.T) {
	fixture := newServiceFixture()
	fixture.repository.isRepository = true
	fixture.exporter.failures["list:"+testSecondaryProjectConstant] = errors.New("listing failed")
	workspace := absoluteWorkspace(testInstance)

	require.NoError(testInstance, export.WriteManifest(fixture.fileSystem, filepath.Join(workspace, "export-manifest.yaml"), export.ManifestFormatYAML, export.Manifest{
		Artifacts: []string{"Contoso/WorkItemTypes/Task.xml"},
	}))

	service := fixture.newService(testInstance)
	configuration := testConfiguration()
	configuration.ContinueOnError = true
	report, runError := service.Run(context.Background(), configuration)
	require.Error(testInstance, runError)
	require.Empty(testInstance, report.RemovedArtifacts)
}

func TestServiceRunAbortsBeforeExporting(testInstance *testing.T) {
	testCases := []struct {
		name          string
		prepare       func(fixture *serviceFixture, configuration *export.Configuration)
		expectedError error
		expectedCalls []string
	}{
		{
			name: "tool_not_found",
			prepare: func(fixture *serviceFixture, _ *export.Configuration) {
				fixture.locator = staticLocator{err: errors.New("witadmin executable not found")}
			},
			expectedCalls: nil,
		},
		{
			name: "missing_repository_url",
			prepare: func(_ *serviceFixture, configuration *export.Configuration) {
				configuration.RepositoryURL = ""
			},
			expectedError: export.ErrRepositoryURLRequired,
			expectedCalls: []string{"is-repository"},
		},
		{
			name: "pull_failure",
			prepare: func(fixture *serviceFixture, _ *export.Configuration) {
				fixture.repository.isRepository = true
				fixture.repository.failures["pull"] = errors.New("not possible to fast-forward")
			},
			expectedCalls: []string{"is-repository", "pull"},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fixture := newServiceFixture()
			configuration := testConfiguration()
			configuration.ContinueOnError = true
			testCase.prepare(fixture, &configuration)

			service := fixture.newService(testInstance)
			_, runError := service.Run(context.Background(), configuration)
			require.Error(testInstance, runError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, runError, testCase.expectedError)
			}
			require.Equal(testInstance, testCase.expectedCalls, fixture.repository.calls)
			require.Empty(testInstance, fixture.exporter.outputFiles)
		})
	}
}

func TestServiceRunRejectsInvalidConfiguration(testInstance *testing.T) {
	fixture := newServiceFixture()
	service := fixture.newService(testInstance)

	_, runError := service.Run(context.Background(), export.Configuration{})
	require.Error(testInstance, runError)
	require.Contains(testInstance, runError.Error(), "collection_url is required")
	require.Empty(testInstance, fixture.repository.calls)
}
