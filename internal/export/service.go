package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	pathutils "github.com/temirov/witexport/internal/utils/path"
)

const (
	globalListFileNameConstant                   = "GlobalList.xml"
	categoriesFileNameConstant                   = "Categories.xml"
	processConfigurationFileNameConstant         = "ProcessConfiguration.xml"
	workItemTypesDirectoryNameConstant           = "WorkItemTypes"
	artifactExtensionConstant                    = ".xml"
	directoryPermissionsConstant                 = 0o755
	repositoryNotConfiguredMessageConstant       = "export service requires repository operations"
	toolLocatorNotConfiguredMessageConstant      = "export service requires a tool locator factory"
	exporterFactoryNotConfiguredMessageConstant  = "export service requires an exporter factory"
	repositoryURLRequiredMessageConstant         = "repository_url is required to clone a missing workspace"
	toolLocationErrorTemplateConstant            = "unable to locate witadmin: %w"
	exporterCreationErrorTemplateConstant        = "unable to construct witadmin client: %w"
	workspaceResolutionErrorTemplateConstant     = "unable to resolve workspace %s: %w"
	workspacePreparationErrorTemplateConstant    = "unable to prepare workspace %s: %w"
	directoryCreationErrorTemplateConstant       = "unable to create directory %s: %w"
	globalListExportErrorTemplateConstant        = "unable to export global list: %w"
	typeListingErrorTemplateConstant             = "project %s: unable to list work item types: %w"
	typeExportErrorTemplateConstant              = "project %s: unable to export work item type %s: %w"
	categoriesExportErrorTemplateConstant        = "project %s: unable to export categories: %w"
	processExportErrorTemplateConstant           = "project %s: unable to export process configuration: %w"
	manifestErrorTemplateConstant                = "unable to record export manifest: %w"
	stageErrorTemplateConstant                   = "unable to stage exported artifacts: %w"
	changeDetectionErrorTemplateConstant         = "unable to inspect workspace changes: %w"
	commitErrorTemplateConstant                  = "unable to commit exported artifacts: %w"
	pushErrorTemplateConstant                    = "unable to push exported artifacts: %w"
	runStartedMessageConstant                    = "Export run started"
	toolLocatedMessageConstant                   = "Using witadmin executable"
	workspaceClonedMessageConstant               = "Cloned workspace repository"
	workspaceUpdatedMessageConstant              = "Updated workspace repository"
	artifactExportedMessageConstant              = "Exported artifact"
	projectExportedMessageConstant               = "Exported project configuration"
	stepFailedMessageConstant                    = "Export step failed; continuing with the next step"
	previousManifestUnreadableMessageConstant    = "Previous manifest is unreadable; stale artifacts will not be removed"
	staleArtifactRemovedMessageConstant          = "Removed artifact no longer present on the server"
	staleArtifactRemovalFailedMessageConstant    = "Unable to remove stale artifact"
	staleArtifactOutsideWorkspaceMessageConstant = "Ignoring manifest entry outside the workspace"
	noChangesMessageConstant                     = "Workspace has no changes; skipping commit"
	changesPublishedMessageConstant              = "Committed and pushed exported artifacts"
	runFinishedMessageConstant                   = "Export run finished"
	logFieldRunIdentifierConstant                = "run_id"
	logFieldCollectionConstant                   = "collection"
	logFieldProjectsConstant                     = "projects"
	logFieldProjectConstant                      = "project"
	logFieldWorkspaceConstant                    = "workspace"
	logFieldToolPathConstant                     = "tool_path"
	logFieldArtifactConstant                     = "artifact"
	logFieldWorkItemTypeCountConstant            = "work_item_types"
	logFieldArtifactCountConstant                = "artifacts"
	logFieldRemovedCountConstant                 = "removed_artifacts"
	logFieldFailureCountConstant                 = "failures"
	logFieldBranchConstant                       = "branch"
	logFieldRemoteConstant                       = "remote"
)

// ErrRepositoryNotConfigured indicates that NewService received no repository operations.
var ErrRepositoryNotConfigured = errors.New(repositoryNotConfiguredMessageConstant)

// ErrToolLocatorNotConfigured indicates that NewService received no tool locator factory.
var ErrToolLocatorNotConfigured = errors.New(toolLocatorNotConfiguredMessageConstant)

// ErrExporterFactoryNotConfigured indicates that NewService received no exporter factory.
var ErrExporterFactoryNotConfigured = errors.New(exporterFactoryNotConfiguredMessageConstant)

// ErrRepositoryURLRequired indicates the workspace is not a repository and there is nothing to clone.
var ErrRepositoryURLRequired = errors.New(repositoryURLRequiredMessageConstant)

// WorkItemExporter exports configuration artifacts from a collection into files.
type WorkItemExporter interface {
	ListWorkItemTypes(executionContext context.Context, project string) ([]string, error)
	ExportWorkItemType(executionContext context.Context, project string, typeName string, outputFile string) error
	ExportCategories(executionContext context.Context, project string, outputFile string) error
	ExportProcessConfiguration(executionContext context.Context, project string, outputFile string) error
	ExportGlobalList(executionContext context.Context, outputFile string) error
}

// RepositoryOperations are the git steps the export run performs on its workspace.
type RepositoryOperations interface {
	IsRepository(repositoryPath string) (bool, error)
	Clone(executionContext context.Context, remoteURL string, branch string, repositoryPath string) error
	Pull(executionContext context.Context, repositoryPath string) error
	StageAll(executionContext context.Context, repositoryPath string) error
	HasPendingChanges(executionContext context.Context, repositoryPath string) (bool, error)
	Commit(executionContext context.Context, repositoryPath string, message string) error
	Push(executionContext context.Context, repositoryPath string, remoteName string, branch string) error
}

// ToolLocator resolves the witadmin executable.
type ToolLocator interface {
	Locate() (string, error)
}

// ToolLocatorFactory builds a locator honoring the configured tool path.
type ToolLocatorFactory func(configuredPath string) ToolLocator

// ExporterFactory builds an exporter for the located executable and run configuration.
type ExporterFactory func(executablePath string, configuration Configuration) (WorkItemExporter, error)

// ServiceDependencies describes collaborators for export runs.
type ServiceDependencies struct {
	Logger                 *zap.Logger
	Repository             RepositoryOperations
	ToolLocatorFactory     ToolLocatorFactory
	ExporterFactory        ExporterFactory
	FileSystem             afero.Fs
	Clock                  clockwork.Clock
	RunIdentifierGenerator func() string
}

// Report summarizes one export run. Artifact paths are relative to the workspace.
type Report struct {
	RunIdentifier    string
	StartedAt        time.Time
	Workspace        string
	Artifacts        []string
	RemovedArtifacts []string
	Failures         []string
	Committed        bool
}

// Service performs export runs.
type Service struct {
	logger                 *zap.Logger
	repository             RepositoryOperations
	toolLocatorFactory     ToolLocatorFactory
	exporterFactory        ExporterFactory
	fileSystem             afero.Fs
	clock                  clockwork.Clock
	runIdentifierGenerator func() string
}

// NewService constructs a Service with the provided dependencies.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Repository == nil {
		return nil, ErrRepositoryNotConfigured
	}
	if dependencies.ToolLocatorFactory == nil {
		return nil, ErrToolLocatorNotConfigured
	}
	if dependencies.ExporterFactory == nil {
		return nil, ErrExporterFactoryNotConfigured
	}

	service := &Service{
		logger:                 dependencies.Logger,
		repository:             dependencies.Repository,
		toolLocatorFactory:     dependencies.ToolLocatorFactory,
		exporterFactory:        dependencies.ExporterFactory,
		fileSystem:             dependencies.FileSystem,
		clock:                  dependencies.Clock,
		runIdentifierGenerator: dependencies.RunIdentifierGenerator,
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	if service.fileSystem == nil {
		service.fileSystem = afero.NewOsFs()
	}
	if service.clock == nil {
		service.clock = clockwork.NewRealClock()
	}
	if service.runIdentifierGenerator == nil {
		service.runIdentifierGenerator = uuid.NewString
	}

	return service, nil
}

// Run exports every configured artifact into the workspace repository and publishes the result.
// Workspace preparation and publishing failures always abort the run. Export step failures abort
// the run unless ContinueOnError is set, in which case they are aggregated into the returned error
// after the remaining steps, including the commit, have run.
func (service *Service) Run(executionContext context.Context, configuration Configuration) (Report, error) {
	sanitized := configuration.Sanitize()
	if validationError := sanitized.Validate(); validationError != nil {
		return Report{}, validationError
	}

	workspace, absoluteError := filepath.Abs(sanitized.Workspace)
	if absoluteError != nil {
		return Report{}, fmt.Errorf(workspaceResolutionErrorTemplateConstant, sanitized.Workspace, absoluteError)
	}

	run := &exportRun{
		service:       service,
		configuration: sanitized,
		workspace:     workspace,
		report: Report{
			RunIdentifier: service.runIdentifierGenerator(),
			StartedAt:     service.clock.Now(),
			Workspace:     workspace,
		},
	}
	run.logger = service.logger.With(zap.String(logFieldRunIdentifierConstant, run.report.RunIdentifier))
	run.logger.Info(
		runStartedMessageConstant,
		zap.String(logFieldCollectionConstant, sanitized.CollectionURL),
		zap.Strings(logFieldProjectsConstant, sanitized.Projects),
		zap.String(logFieldWorkspaceConstant, workspace),
	)

	runError := run.execute(executionContext)
	run.report.Failures = failureMessages(run.failures)

	run.logger.Info(
		runFinishedMessageConstant,
		zap.Int(logFieldArtifactCountConstant, len(run.report.Artifacts)),
		zap.Int(logFieldRemovedCountConstant, len(run.report.RemovedArtifacts)),
		zap.Int(logFieldFailureCountConstant, len(run.report.Failures)),
		zap.Error(runError),
	)

	if runError != nil {
		return run.report, runError
	}
	return run.report, run.failures.ErrorOrNil()
}

type exportRun struct {
	service       *Service
	configuration Configuration
	workspace     string
	logger        *zap.Logger
	exporter      WorkItemExporter
	report        Report
	failures      *multierror.Error
}

func (run *exportRun) execute(executionContext context.Context) error {
	toolPath, locateError := run.service.toolLocatorFactory(run.configuration.ToolPath).Locate()
	if locateError != nil {
		return fmt.Errorf(toolLocationErrorTemplateConstant, locateError)
	}
	run.logger.Info(toolLocatedMessageConstant, zap.String(logFieldToolPathConstant, toolPath))

	exporter, exporterError := run.service.exporterFactory(toolPath, run.configuration)
	if exporterError != nil {
		return fmt.Errorf(exporterCreationErrorTemplateConstant, exporterError)
	}
	run.exporter = exporter

	if preparationError := run.prepareWorkspace(executionContext); preparationError != nil {
		return fmt.Errorf(workspacePreparationErrorTemplateConstant, run.workspace, preparationError)
	}

	previousManifest, previousManifestFound := run.loadPreviousManifest()

	if globalListError := run.exportGlobalList(executionContext); globalListError != nil {
		return globalListError
	}

	for _, project := range run.configuration.Projects {
		if projectError := run.exportProject(executionContext, project); projectError != nil {
			return projectError
		}
	}

	if previousManifestFound && run.failures.ErrorOrNil() == nil {
		run.removeStaleArtifacts(previousManifest)
	}

	if manifestError := run.writeManifest(); manifestError != nil {
		return fmt.Errorf(manifestErrorTemplateConstant, manifestError)
	}

	return run.publish(executionContext)
}

func (run *exportRun) prepareWorkspace(executionContext context.Context) error {
	isRepository, inspectionError := run.service.repository.IsRepository(run.workspace)
	if inspectionError != nil {
		return inspectionError
	}

	if isRepository {
		if pullError := run.service.repository.Pull(executionContext, run.workspace); pullError != nil {
			return pullError
		}
		run.logger.Info(workspaceUpdatedMessageConstant, zap.String(logFieldWorkspaceConstant, run.workspace))
		return nil
	}

	if len(run.configuration.RepositoryURL) == 0 {
		return ErrRepositoryURLRequired
	}
	if directoryError := run.ensureDirectory(filepath.Dir(run.workspace)); directoryError != nil {
		return directoryError
	}
	if cloneError := run.service.repository.Clone(executionContext, run.configuration.RepositoryURL, run.configuration.Branch, run.workspace); cloneError != nil {
		return cloneError
	}
	run.logger.Info(workspaceClonedMessageConstant, zap.String(logFieldWorkspaceConstant, run.workspace))
	return nil
}

func (run *exportRun) exportGlobalList(executionContext context.Context) error {
	exportError := run.exporter.ExportGlobalList(executionContext, run.absolutePath(globalListFileNameConstant))
	if exportError != nil {
		return run.recordFailure(fmt.Errorf(globalListExportErrorTemplateConstant, exportError))
	}
	run.recordArtifact(globalListFileNameConstant)
	return nil
}

func (run *exportRun) exportProject(executionContext context.Context, project string) error {
	projectLogger := run.logger.With(zap.String(logFieldProjectConstant, project))
	projectDirectory := pathutils.SanitizeFileName(project)
	typesDirectory := path.Join(projectDirectory, workItemTypesDirectoryNameConstant)

	if directoryError := run.ensureDirectory(run.absolutePath(typesDirectory)); directoryError != nil {
		return run.recordFailure(directoryError)
	}

	typeNames, listError := run.exporter.ListWorkItemTypes(executionContext, project)
	if listError != nil {
		return run.recordFailure(fmt.Errorf(typeListingErrorTemplateConstant, project, listError))
	}

	for _, typeName := range typeNames {
		artifact := path.Join(typesDirectory, pathutils.SanitizeFileName(typeName)+artifactExtensionConstant)
		if exportError := run.exporter.ExportWorkItemType(executionContext, project, typeName, run.absolutePath(artifact)); exportError != nil {
			if failure := run.recordFailure(fmt.Errorf(typeExportErrorTemplateConstant, project, typeName, exportError)); failure != nil {
				return failure
			}
			continue
		}
		run.recordArtifact(artifact)
	}

	categoriesArtifact := path.Join(projectDirectory, categoriesFileNameConstant)
	if exportError := run.exporter.ExportCategories(executionContext, project, run.absolutePath(categoriesArtifact)); exportError != nil {
		if failure := run.recordFailure(fmt.Errorf(categoriesExportErrorTemplateConstant, project, exportError)); failure != nil {
			return failure
		}
	} else {
		run.recordArtifact(categoriesArtifact)
	}

	processArtifact := path.Join(projectDirectory, processConfigurationFileNameConstant)
	if exportError := run.exporter.ExportProcessConfiguration(executionContext, project, run.absolutePath(processArtifact)); exportError != nil {
		if failure := run.recordFailure(fmt.Errorf(processExportErrorTemplateConstant, project, exportError)); failure != nil {
			return failure
		}
	} else {
		run.recordArtifact(processArtifact)
	}

	projectLogger.Info(projectExportedMessageConstant, zap.Int(logFieldWorkItemTypeCountConstant, len(typeNames)))
	return nil
}

func (run *exportRun) loadPreviousManifest() (Manifest, bool) {
	manifest, found, loadError := LoadManifest(run.service.fileSystem, run.absolutePath(run.configuration.ManifestFormat.FileName()), run.configuration.ManifestFormat)
	if loadError != nil {
		run.logger.Warn(previousManifestUnreadableMessageConstant, zap.Error(loadError))
		return Manifest{}, false
	}
	return manifest, found
}

func (run *exportRun) removeStaleArtifacts(previousManifest Manifest) {
	current := make(map[string]struct{}, len(run.report.Artifacts))
	for _, artifact := range run.report.Artifacts {
		current[artifact] = struct{}{}
	}

	for _, artifact := range previousManifest.Artifacts {
		if _, exported := current[artifact]; exported {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(artifact)) {
			run.logger.Warn(staleArtifactOutsideWorkspaceMessageConstant, zap.String(logFieldArtifactConstant, artifact))
			continue
		}
		removeError := run.service.fileSystem.Remove(run.absolutePath(artifact))
		if removeError != nil && !errors.Is(removeError, os.ErrNotExist) {
			run.logger.Warn(staleArtifactRemovalFailedMessageConstant, zap.String(logFieldArtifactConstant, artifact), zap.Error(removeError))
			continue
		}
		run.report.RemovedArtifacts = append(run.report.RemovedArtifacts, artifact)
		run.logger.Info(staleArtifactRemovedMessageConstant, zap.String(logFieldArtifactConstant, artifact))
	}
}

func (run *exportRun) writeManifest() error {
	manifest := Manifest{
		RunIdentifier:    run.report.RunIdentifier,
		GeneratedAt:      run.report.StartedAt,
		CollectionURL:    run.configuration.CollectionURL,
		Projects:         run.configuration.Projects,
		Artifacts:        run.report.Artifacts,
		RemovedArtifacts: run.report.RemovedArtifacts,
		Failures:         failureMessages(run.failures),
	}
	return WriteManifest(run.service.fileSystem, run.absolutePath(run.configuration.ManifestFormat.FileName()), run.configuration.ManifestFormat, manifest)
}

func (run *exportRun) publish(executionContext context.Context) error {
	repository := run.service.repository

	if stageError := repository.StageAll(executionContext, run.workspace); stageError != nil {
		return fmt.Errorf(stageErrorTemplateConstant, stageError)
	}

	hasChanges, detectionError := repository.HasPendingChanges(executionContext, run.workspace)
	if detectionError != nil {
		return fmt.Errorf(changeDetectionErrorTemplateConstant, detectionError)
	}
	if !hasChanges {
		run.logger.Info(noChangesMessageConstant)
		return nil
	}

	commitMessage := run.configuration.RenderCommitMessage(run.report.RunIdentifier, run.report.StartedAt)
	if commitError := repository.Commit(executionContext, run.workspace, commitMessage); commitError != nil {
		return fmt.Errorf(commitErrorTemplateConstant, commitError)
	}
	if pushError := repository.Push(executionContext, run.workspace, run.configuration.Remote, run.configuration.Branch); pushError != nil {
		return fmt.Errorf(pushErrorTemplateConstant, pushError)
	}

	run.report.Committed = true
	run.logger.Info(
		changesPublishedMessageConstant,
		zap.String(logFieldRemoteConstant, run.configuration.Remote),
		zap.String(logFieldBranchConstant, run.configuration.Branch),
	)
	return nil
}

// recordFailure returns the failure when the run must stop, or nil after recording it for later.
func (run *exportRun) recordFailure(failure error) error {
	if !run.configuration.ContinueOnError || isCancellation(failure) {
		return failure
	}
	run.logger.Warn(stepFailedMessageConstant, zap.Error(failure))
	run.failures = multierror.Append(run.failures, failure)
	return nil
}

func (run *exportRun) recordArtifact(artifact string) {
	run.report.Artifacts = append(run.report.Artifacts, artifact)
	run.logger.Debug(artifactExportedMessageConstant, zap.String(logFieldArtifactConstant, artifact))
}

func (run *exportRun) ensureDirectory(directory string) error {
	if directoryError := run.service.fileSystem.MkdirAll(directory, directoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(directoryCreationErrorTemplateConstant, directory, directoryError)
	}
	return nil
}

func (run *exportRun) absolutePath(artifact string) string {
	return filepath.Join(run.workspace, filepath.FromSlash(artifact))
}

func failureMessages(failures *multierror.Error) []string {
	if failures == nil {
		return nil
	}
	messages := make([]string, 0, len(failures.Errors))
	for _, failure := range failures.Errors {
		messages = append(messages, failure.Error())
	}
	return messages
}

func isCancellation(failure error) bool {
	return errors.Is(failure, context.Canceled) || errors.Is(failure, context.DeadlineExceeded)
}
