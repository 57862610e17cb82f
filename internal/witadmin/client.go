package witadmin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/witexport/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant   = "witadmin executor not configured"
	executablePathRequiredMessageConstant  = "witadmin executable path required"
	collectionURLRequiredMessageConstant   = "collection url required"
	projectRequiredMessageConstant         = "project name required"
	workItemTypeRequiredMessageConstant    = "work item type name required"
	outputFileRequiredMessageConstant      = "output file required"
	operationErrorTemplateConstant         = "witadmin %s failed: %w"
	listTypesSubcommandConstant            = "listwitd"
	exportTypeSubcommandConstant           = "exportwitd"
	exportCategoriesSubcommandConstant     = "exportcategories"
	exportProcessConfigSubcommandConstant  = "exportprocessconfig"
	exportGlobalListSubcommandConstant     = "exportgloballist"
	collectionArgumentTemplateConstant     = "/collection:%s"
	projectArgumentTemplateConstant        = "/p:%s"
	typeNameArgumentTemplateConstant       = "/n:%s"
	fileArgumentTemplateConstant           = "/f:%s"
	workItemTypeListLineSeparatorConstant  = "\n"
	workItemTypeListCarriageReturnConstant = "\r"
)

// ErrExecutorNotConfigured indicates that NewClient received a nil executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// ErrExecutablePathRequired indicates that NewClient received a blank executable path.
var ErrExecutablePathRequired = errors.New(executablePathRequiredMessageConstant)

// ErrCollectionURLRequired indicates that NewClient received a blank collection URL.
var ErrCollectionURLRequired = errors.New(collectionURLRequiredMessageConstant)

// ErrProjectRequired indicates a project-scoped operation was called without a project.
var ErrProjectRequired = errors.New(projectRequiredMessageConstant)

// ErrWorkItemTypeRequired indicates ExportWorkItemType was called without a type name.
var ErrWorkItemTypeRequired = errors.New(workItemTypeRequiredMessageConstant)

// ErrOutputFileRequired indicates an export was called without a destination file.
var ErrOutputFileRequired = errors.New(outputFileRequiredMessageConstant)

// Executor runs the witadmin executable.
type Executor interface {
	ExecuteWitAdmin(executionContext context.Context, executablePath string, details execshell.CommandDetails) (execshell.InvocationResult, error)
}

// Client issues witadmin subcommands against a single team project collection.
type Client struct {
	executor       Executor
	executablePath string
	collectionURL  string
	pollInterval   time.Duration
	timeout        time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(client *Client)

// WithCommandLimits sets the poll interval and timeout applied to every witadmin invocation.
func WithCommandLimits(pollInterval time.Duration, timeout time.Duration) ClientOption {
	return func(client *Client) {
		client.pollInterval = pollInterval
		client.timeout = timeout
	}
}

// NewClient constructs a Client for the collection at collectionURL.
func NewClient(executor Executor, executablePath string, collectionURL string, options ...ClientOption) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	trimmedExecutablePath := strings.TrimSpace(executablePath)
	if len(trimmedExecutablePath) == 0 {
		return nil, ErrExecutablePathRequired
	}
	trimmedCollectionURL := strings.TrimSpace(collectionURL)
	if len(trimmedCollectionURL) == 0 {
		return nil, ErrCollectionURLRequired
	}

	client := &Client{executor: executor, executablePath: trimmedExecutablePath, collectionURL: trimmedCollectionURL}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

// ListWorkItemTypes returns the work item type names defined in project, in the order witadmin prints them.
func (client *Client) ListWorkItemTypes(executionContext context.Context, project string) ([]string, error) {
	projectArgument, projectError := buildProjectArgument(project)
	if projectError != nil {
		return nil, projectError
	}

	result, executionError := client.run(executionContext, listTypesSubcommandConstant, projectArgument)
	if executionError != nil {
		return nil, executionError
	}
	return parseWorkItemTypeNames(result.StandardOutput), nil
}

// ExportWorkItemType writes the definition of typeName in project to outputFile.
func (client *Client) ExportWorkItemType(executionContext context.Context, project string, typeName string, outputFile string) error {
	projectArgument, projectError := buildProjectArgument(project)
	if projectError != nil {
		return projectError
	}
	trimmedTypeName := strings.TrimSpace(typeName)
	if len(trimmedTypeName) == 0 {
		return ErrWorkItemTypeRequired
	}
	fileArgument, fileError := buildFileArgument(outputFile)
	if fileError != nil {
		return fileError
	}

	_, executionError := client.run(executionContext, exportTypeSubcommandConstant, projectArgument, fmt.Sprintf(typeNameArgumentTemplateConstant, trimmedTypeName), fileArgument)
	return executionError
}

// ExportCategories writes the category definitions of project to outputFile.
func (client *Client) ExportCategories(executionContext context.Context, project string, outputFile string) error {
	return client.exportProjectArtifact(executionContext, exportCategoriesSubcommandConstant, project, outputFile)
}

// ExportProcessConfiguration writes the process configuration of project to outputFile.
func (client *Client) ExportProcessConfiguration(executionContext context.Context, project string, outputFile string) error {
	return client.exportProjectArtifact(executionContext, exportProcessConfigSubcommandConstant, project, outputFile)
}

// ExportGlobalList writes the collection-wide global list to outputFile.
func (client *Client) ExportGlobalList(executionContext context.Context, outputFile string) error {
	fileArgument, fileError := buildFileArgument(outputFile)
	if fileError != nil {
		return fileError
	}
	_, executionError := client.run(executionContext, exportGlobalListSubcommandConstant, fileArgument)
	return executionError
}

func (client *Client) exportProjectArtifact(executionContext context.Context, subcommand string, project string, outputFile string) error {
	projectArgument, projectError := buildProjectArgument(project)
	if projectError != nil {
		return projectError
	}
	fileArgument, fileError := buildFileArgument(outputFile)
	if fileError != nil {
		return fileError
	}
	_, executionError := client.run(executionContext, subcommand, projectArgument, fileArgument)
	return executionError
}

func (client *Client) run(executionContext context.Context, subcommand string, arguments ...string) (execshell.InvocationResult, error) {
	commandArguments := make([]string, 0, len(arguments)+2)
	commandArguments = append(commandArguments, subcommand, fmt.Sprintf(collectionArgumentTemplateConstant, client.collectionURL))
	commandArguments = append(commandArguments, arguments...)

	result, executionError := client.executor.ExecuteWitAdmin(executionContext, client.executablePath, execshell.CommandDetails{
		Arguments:    commandArguments,
		PollInterval: client.pollInterval,
		Timeout:      client.timeout,
	})
	if executionError != nil {
		return execshell.InvocationResult{}, fmt.Errorf(operationErrorTemplateConstant, subcommand, executionError)
	}
	return result, nil
}

func buildProjectArgument(project string) (string, error) {
	trimmedProject := strings.TrimSpace(project)
	if len(trimmedProject) == 0 {
		return "", ErrProjectRequired
	}
	return fmt.Sprintf(projectArgumentTemplateConstant, trimmedProject), nil
}

func buildFileArgument(outputFile string) (string, error) {
	trimmedOutputFile := strings.TrimSpace(outputFile)
	if len(trimmedOutputFile) == 0 {
		return "", ErrOutputFileRequired
	}
	return fmt.Sprintf(fileArgumentTemplateConstant, trimmedOutputFile), nil
}

func parseWorkItemTypeNames(output string) []string {
	normalizedOutput := strings.ReplaceAll(output, workItemTypeListCarriageReturnConstant, "")
	names := make([]string, 0)
	for _, line := range strings.Split(normalizedOutput, workItemTypeListLineSeparatorConstant) {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 {
			continue
		}
		names = append(names, trimmedLine)
	}
	return names
}
