package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/temirov/witexport/internal/execshell"
	"github.com/temirov/witexport/internal/gitrepo"
	pathutils "github.com/temirov/witexport/internal/utils/path"
)

const (
	// CommitMessageTimestampPlaceholder is replaced with the run start time in RFC 3339 form.
	CommitMessageTimestampPlaceholder = "{timestamp}"
	// CommitMessageRunIdentifierPlaceholder is replaced with the run identifier.
	CommitMessageRunIdentifierPlaceholder = "{run_id}"
	// CommitMessageProjectsPlaceholder is replaced with the comma-separated project list.
	CommitMessageProjectsPlaceholder = "{projects}"

	defaultBranchConstant                     = "main"
	defaultCommitMessageConstant              = "Export work item configuration " + CommitMessageTimestampPlaceholder + " (run " + CommitMessageRunIdentifierPlaceholder + ")"
	projectListSeparatorConstant              = ", "
	collectionURLKeyConstant                  = "collection_url"
	projectsKeyConstant                       = "projects"
	repositoryURLKeyConstant                  = "repository_url"
	workspaceKeyConstant                      = "workspace"
	branchKeyConstant                         = "branch"
	remoteKeyConstant                         = "remote"
	commitMessageKeyConstant                  = "commit_message"
	toolPathKeyConstant                       = "tool_path"
	pollIntervalKeyConstant                   = "poll_interval"
	timeoutKeyConstant                        = "timeout"
	continueOnErrorKeyConstant                = "continue_on_error"
	intervalKeyConstant                       = "interval"
	manifestFormatKeyConstant                 = "manifest_format"
	configurationKeySeparatorConstant         = "."
	collectionURLRequiredMessageConstant      = "collection_url is required"
	projectsRequiredMessageConstant           = "at least one project is required"
	workspaceRequiredMessageConstant          = "workspace is required when repository_url does not name a repository"
	repositoryURLInvalidTemplateConstant      = "repository_url is invalid: %w"
	negativeDurationTemplateConstant          = "%s must not be negative"
	unsupportedManifestFormatTemplateConstant = "manifest_format %q is not supported (expected yaml or toml)"
	invalidConfigurationTemplateConstant      = "invalid export configuration: %w"
)

// Configuration is the explicit input of one export run.
type Configuration struct {
	CollectionURL   string         `mapstructure:"collection_url"`
	Projects        []string       `mapstructure:"projects"`
	RepositoryURL   string         `mapstructure:"repository_url"`
	Workspace       string         `mapstructure:"workspace"`
	Branch          string         `mapstructure:"branch"`
	Remote          string         `mapstructure:"remote"`
	CommitMessage   string         `mapstructure:"commit_message"`
	ToolPath        string         `mapstructure:"tool_path"`
	PollInterval    time.Duration  `mapstructure:"poll_interval"`
	Timeout         time.Duration  `mapstructure:"timeout"`
	ContinueOnError bool           `mapstructure:"continue_on_error"`
	Interval        time.Duration  `mapstructure:"interval"`
	ManifestFormat  ManifestFormat `mapstructure:"manifest_format"`
}

// DefaultConfiguration returns baseline export settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		Branch:         defaultBranchConstant,
		Remote:         gitrepo.DefaultRemoteName,
		CommitMessage:  defaultCommitMessageConstant,
		PollInterval:   execshell.DefaultPollInterval,
		Timeout:        execshell.DefaultTimeout,
		ManifestFormat: ManifestFormatYAML,
	}
}

// DefaultConfigurationValues exposes the defaults as configuration keys nested under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	values := map[string]any{
		collectionURLKeyConstant:   defaults.CollectionURL,
		projectsKeyConstant:        []string{},
		repositoryURLKeyConstant:   defaults.RepositoryURL,
		workspaceKeyConstant:       defaults.Workspace,
		branchKeyConstant:          defaults.Branch,
		remoteKeyConstant:          defaults.Remote,
		commitMessageKeyConstant:   defaults.CommitMessage,
		toolPathKeyConstant:        defaults.ToolPath,
		pollIntervalKeyConstant:    defaults.PollInterval.String(),
		timeoutKeyConstant:         defaults.Timeout.String(),
		continueOnErrorKeyConstant: defaults.ContinueOnError,
		intervalKeyConstant:        defaults.Interval.String(),
		manifestFormatKeyConstant:  string(defaults.ManifestFormat),
	}

	trimmedPrefix := strings.TrimSpace(prefix)
	if len(trimmedPrefix) == 0 {
		return values
	}

	prefixed := make(map[string]any, len(values))
	for key, value := range values {
		prefixed[trimmedPrefix+configurationKeySeparatorConstant+key] = value
	}
	return prefixed
}

// Sanitize trims values, expands home shortcuts, removes duplicate projects, fills blank values with
// defaults, and derives the workspace from the repository name when it is not configured.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	homeExpander := pathutils.NewHomeExpander()

	sanitized := configuration
	sanitized.CollectionURL = strings.TrimSpace(configuration.CollectionURL)
	sanitized.Projects = uniqueProjects(configuration.Projects)
	sanitized.RepositoryURL = strings.TrimSpace(configuration.RepositoryURL)
	sanitized.Workspace = homeExpander.Expand(strings.TrimSpace(configuration.Workspace))
	sanitized.Branch = valueOrDefault(configuration.Branch, defaults.Branch)
	sanitized.Remote = valueOrDefault(configuration.Remote, defaults.Remote)
	sanitized.CommitMessage = valueOrDefault(configuration.CommitMessage, defaults.CommitMessage)
	sanitized.ToolPath = homeExpander.Expand(strings.TrimSpace(configuration.ToolPath))
	sanitized.ManifestFormat = ManifestFormat(strings.ToLower(valueOrDefault(string(configuration.ManifestFormat), string(defaults.ManifestFormat))))

	if len(sanitized.Workspace) == 0 && len(sanitized.RepositoryURL) > 0 {
		if remote, parseError := gitrepo.ParseRemoteURL(sanitized.RepositoryURL); parseError == nil {
			if repositoryName, nameError := remote.RepositoryName(); nameError == nil {
				sanitized.Workspace = repositoryName
			}
		}
	}

	return sanitized
}

// Validate reports every problem with the configuration at once.
func (configuration Configuration) Validate() error {
	var problems *multierror.Error

	if len(configuration.CollectionURL) == 0 {
		problems = multierror.Append(problems, errors.New(collectionURLRequiredMessageConstant))
	}
	if len(configuration.Projects) == 0 {
		problems = multierror.Append(problems, errors.New(projectsRequiredMessageConstant))
	}
	if len(configuration.RepositoryURL) > 0 {
		if _, parseError := gitrepo.ParseRemoteURL(configuration.RepositoryURL); parseError != nil {
			problems = multierror.Append(problems, fmt.Errorf(repositoryURLInvalidTemplateConstant, parseError))
		}
	}
	if len(configuration.Workspace) == 0 {
		problems = multierror.Append(problems, errors.New(workspaceRequiredMessageConstant))
	}
	durations := []struct {
		key   string
		value time.Duration
	}{
		{key: pollIntervalKeyConstant, value: configuration.PollInterval},
		{key: timeoutKeyConstant, value: configuration.Timeout},
		{key: intervalKeyConstant, value: configuration.Interval},
	}
	for _, duration := range durations {
		if duration.value < 0 {
			problems = multierror.Append(problems, fmt.Errorf(negativeDurationTemplateConstant, duration.key))
		}
	}
	if !configuration.ManifestFormat.Supported() {
		problems = multierror.Append(problems, fmt.Errorf(unsupportedManifestFormatTemplateConstant, configuration.ManifestFormat))
	}

	if validationError := problems.ErrorOrNil(); validationError != nil {
		return fmt.Errorf(invalidConfigurationTemplateConstant, validationError)
	}
	return nil
}

// RenderCommitMessage substitutes the run placeholders in the commit message template.
func (configuration Configuration) RenderCommitMessage(runIdentifier string, startedAt time.Time) string {
	replacer := strings.NewReplacer(
		CommitMessageTimestampPlaceholder, startedAt.UTC().Format(time.RFC3339),
		CommitMessageRunIdentifierPlaceholder, runIdentifier,
		CommitMessageProjectsPlaceholder, strings.Join(configuration.Projects, projectListSeparatorConstant),
	)
	return strings.TrimSpace(replacer.Replace(configuration.CommitMessage))
}

func uniqueProjects(projects []string) []string {
	unique := make([]string, 0, len(projects))
	seen := make(map[string]struct{}, len(projects))
	for _, project := range projects {
		trimmedProject := strings.TrimSpace(project)
		if len(trimmedProject) == 0 {
			continue
		}
		normalizedProject := strings.ToLower(trimmedProject)
		if _, exists := seen[normalizedProject]; exists {
			continue
		}
		seen[normalizedProject] = struct{}{}
		unique = append(unique, trimmedProject)
	}
	return unique
}

func valueOrDefault(value string, defaultValue string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return defaultValue
	}
	return trimmedValue
}
