package export

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/witexport/internal/execshell"
	"github.com/temirov/witexport/internal/gitrepo"
	"github.com/temirov/witexport/internal/ui"
	flagutils "github.com/temirov/witexport/internal/utils/flags"
	"github.com/temirov/witexport/internal/witadmin"
)

const (
	commandUseConstant                          = "export"
	commandShortDescriptionConstant             = "Export work item configuration into a git repository"
	commandLongDescriptionConstant              = "export runs witadmin for the global list and for every configured project's work item types, categories, and process configuration, then commits and pushes the result. With --interval it repeats until interrupted."
	collectionFlagNameConstant                  = "collection"
	collectionFlagUsageConstant                 = "Project collection URL"
	projectFlagNameConstant                     = "project"
	projectFlagUsageConstant                    = "Project to export (repeatable)"
	repositoryFlagNameConstant                  = "repository"
	repositoryFlagUsageConstant                 = "Git repository URL cloned into the workspace when it is missing"
	workspaceFlagNameConstant                   = "workspace"
	workspaceFlagUsageConstant                  = "Local working copy that receives the exported files"
	toolFlagNameConstant                        = "tool"
	toolFlagUsageConstant                       = "Path to witadmin; searched for when omitted"
	continueOnErrorFlagNameConstant             = "continue-on-error"
	continueOnErrorFlagUsageConstant            = "Keep exporting after a failed step and report all failures at the end"
	intervalFlagNameConstant                    = "interval"
	intervalFlagUsageConstant                   = "Repeat the export on this interval until interrupted (0 runs once)"
	executorCreationErrorTemplateConstant       = "unable to construct command executor: %w"
	repositoryCreationErrorTemplateConstant     = "unable to construct repository manager: %w"
	serviceCreationErrorTemplateConstant        = "unable to construct export service: %w"
	schedulerCreationErrorTemplateConstant      = "unable to construct export scheduler: %w"
	exportCommandExecutionErrorTemplateConstant = "export failed: %w"
	reportSummaryTemplateConstant               = "run %s: %d artifacts exported, %d removed, %d failed steps, committed: %t\n"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs an export runner from dependencies.
type ServiceProvider func(dependencies ServiceDependencies) (Runner, error)

// CommandExecutor runs git and witadmin commands.
type CommandExecutor interface {
	gitrepo.GitExecutor
	witadmin.Executor
}

// CommandBuilder assembles the export Cobra command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConsoleLoggerProvider        LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() Configuration
	Executor                     CommandExecutor
	ServiceProvider              ServiceProvider
	ToolLocatorFactory           ToolLocatorFactory
}

// Build constructs the export command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.run,
	}

	command.Flags().String(collectionFlagNameConstant, "", collectionFlagUsageConstant)
	command.Flags().StringArray(projectFlagNameConstant, nil, projectFlagUsageConstant)
	command.Flags().String(repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	command.Flags().String(workspaceFlagNameConstant, "", workspaceFlagUsageConstant)
	command.Flags().String(toolFlagNameConstant, "", toolFlagUsageConstant)
	var continueOnError bool
	flagutils.AddToggleFlag(command.Flags(), &continueOnError, continueOnErrorFlagNameConstant, false, continueOnErrorFlagUsageConstant)
	command.Flags().Duration(intervalFlagNameConstant, 0, intervalFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.parseConfiguration(command)
	if validationError := configuration.Validate(); validationError != nil {
		return validationError
	}

	logger := builder.resolveLogger()

	executor, executorError := builder.resolveExecutor(logger)
	if executorError != nil {
		return fmt.Errorf(executorCreationErrorTemplateConstant, executorError)
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor, gitrepo.WithCommandLimits(configuration.PollInterval, configuration.Timeout))
	if managerError != nil {
		return fmt.Errorf(repositoryCreationErrorTemplateConstant, managerError)
	}

	service, serviceError := builder.resolveService(ServiceDependencies{
		Logger:             logger,
		Repository:         repositoryManager,
		ToolLocatorFactory: builder.resolveToolLocatorFactory(logger),
		ExporterFactory: func(executablePath string, runConfiguration Configuration) (WorkItemExporter, error) {
			return witadmin.NewClient(
				executor,
				executablePath,
				runConfiguration.CollectionURL,
				witadmin.WithCommandLimits(runConfiguration.PollInterval, runConfiguration.Timeout),
			)
		},
	})
	if serviceError != nil {
		return fmt.Errorf(serviceCreationErrorTemplateConstant, serviceError)
	}

	scheduler, schedulerError := NewScheduler(logger, reportingRunner{runner: service, output: command.OutOrStdout()}, nil)
	if schedulerError != nil {
		return fmt.Errorf(schedulerCreationErrorTemplateConstant, schedulerError)
	}

	if runError := scheduler.Run(command.Context(), configuration); runError != nil {
		return fmt.Errorf(exportCommandExecutionErrorTemplateConstant, runError)
	}
	return nil
}

func (builder *CommandBuilder) parseConfiguration(command *cobra.Command) Configuration {
	configuration := DefaultConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	flagSet := command.Flags()
	if flagSet.Changed(collectionFlagNameConstant) {
		configuration.CollectionURL, _ = flagSet.GetString(collectionFlagNameConstant)
	}
	if flagSet.Changed(projectFlagNameConstant) {
		configuration.Projects, _ = flagSet.GetStringArray(projectFlagNameConstant)
	}
	if flagSet.Changed(repositoryFlagNameConstant) {
		configuration.RepositoryURL, _ = flagSet.GetString(repositoryFlagNameConstant)
	}
	if flagSet.Changed(workspaceFlagNameConstant) {
		configuration.Workspace, _ = flagSet.GetString(workspaceFlagNameConstant)
	}
	if flagSet.Changed(toolFlagNameConstant) {
		configuration.ToolPath, _ = flagSet.GetString(toolFlagNameConstant)
	}
	if flagSet.Changed(continueOnErrorFlagNameConstant) {
		rawValue := flagSet.Lookup(continueOnErrorFlagNameConstant).Value.String()
		if parsedValue, parseError := flagutils.ParseToggle(rawValue); parseError == nil {
			configuration.ContinueOnError = parsedValue
		}
	}
	if flagSet.Changed(intervalFlagNameConstant) {
		interval, _ := flagSet.GetDuration(intervalFlagNameConstant)
		configuration.Interval = interval
	}

	return configuration.Sanitize()
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveExecutor(logger *zap.Logger) (CommandExecutor, error) {
	if builder.Executor != nil {
		return builder.Executor, nil
	}

	var observer execshell.CommandEventObserver
	if builder.HumanReadableLoggingProvider != nil && builder.HumanReadableLoggingProvider() && builder.ConsoleLoggerProvider != nil {
		if consoleLogger := builder.ConsoleLoggerProvider(); consoleLogger != nil {
			observer = ui.NewConsoleCommandEventLogger(consoleLogger)
		}
	}

	return execshell.NewShellExecutor(logger, execshell.NewProcessRunner(logger), observer)
}

func (builder *CommandBuilder) resolveToolLocatorFactory(logger *zap.Logger) ToolLocatorFactory {
	if builder.ToolLocatorFactory != nil {
		return builder.ToolLocatorFactory
	}
	return func(configuredPath string) ToolLocator {
		return witadmin.NewToolLocator(logger, configuredPath)
	}
}

func (builder *CommandBuilder) resolveService(dependencies ServiceDependencies) (Runner, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(dependencies)
	}
	return NewService(dependencies)
}

// reportingRunner prints a one-line summary of every run.
type reportingRunner struct {
	runner Runner
	output io.Writer
}

func (runner reportingRunner) Run(executionContext context.Context, configuration Configuration) (Report, error) {
	report, runError := runner.runner.Run(executionContext, configuration)
	if len(report.RunIdentifier) > 0 {
		fmt.Fprintf(runner.output, reportSummaryTemplateConstant, report.RunIdentifier, len(report.Artifacts), len(report.RemovedArtifacts), len(report.Failures), report.Committed)
	}
	return report, runError
}
