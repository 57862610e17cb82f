package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant             = "Running %s"
	genericSuccessTemplateConstant           = "Completed %s"
	genericDetachedTemplateConstant          = "%s continues in the background"
	genericFailureTemplateConstant           = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant  = "%s failed: %s"
	workingDirectorySuffixTemplateConstant   = " (in %s)"
	standardErrorSuffixTemplateConstant      = ": %s"
	exitCodeSuffixTemplateConstant           = " (exit code %d%s)"
	unknownFailureMessageConstant            = "unknown error"
	emptyStringConstant                      = ""
	defaultWorkingDirectoryLabelConstant     = "current directory"
	fallbackUnknownValueLabelConstant        = "unknown"
	witAdminFlagPrefixConstant               = "/"
	witAdminFlagValueSeparatorConstant       = ":"
	gitMessageFlagConstant                   = "-m"
	gitBranchFlagConstant                    = "--branch"
	gitBranchShortFlagConstant               = "-b"
	flagPrefixConstant                       = "-"
	cloneSubjectTemplateConstant             = "%s into %s"
	commitSubjectTemplateConstant            = "%q in %s"
	pushSubjectTemplateConstant              = "%s to %s from %s"
	pushWithoutTargetSubjectTemplateConstant = "from %s"
	exportTypeSubjectTemplateConstant        = "%s from %s to %s"
)

const (
	gitCloneSubcommandNameConstant  = "clone"
	gitPullSubcommandNameConstant   = "pull"
	gitStatusSubcommandNameConstant = "status"
	gitAddSubcommandNameConstant    = "add"
	gitCommitSubcommandNameConstant = "commit"
	gitPushSubcommandNameConstant   = "push"
)

const (
	witAdminListTypesSubcommandNameConstant           = "listwitd"
	witAdminExportTypeSubcommandNameConstant          = "exportwitd"
	witAdminExportCategoriesSubcommandNameConstant    = "exportcategories"
	witAdminExportProcessConfigSubcommandNameConstant = "exportprocessconfig"
	witAdminExportGlobalListSubcommandNameConstant    = "exportgloballist"
	witAdminProjectFlagNameConstant                   = "p"
	witAdminTypeNameFlagNameConstant                  = "n"
	witAdminFileFlagNameConstant                      = "f"
	witAdminCollectionFlagNameConstant                = "collection"
)

// lifecycleTemplates holds the four messages for one kind of command; each template receives the
// subject description as its only verb.
type lifecycleTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var gitLifecycleTemplates = map[string]lifecycleTemplates{
	gitCloneSubcommandNameConstant: {
		start:            "Cloning %s",
		success:          "Cloned %s",
		failure:          "Failed to clone %s",
		executionFailure: "Unable to clone %s",
	},
	gitPullSubcommandNameConstant: {
		start:            "Pulling latest changes into %s",
		success:          "Pulled latest changes into %s",
		failure:          "Failed to pull latest changes into %s",
		executionFailure: "Unable to pull latest changes into %s",
	},
	gitStatusSubcommandNameConstant: {
		start:            "Reviewing working tree status in %s",
		success:          "Collected working tree status for %s",
		failure:          "Failed to review working tree status in %s",
		executionFailure: "Unable to review working tree status in %s",
	},
	gitAddSubcommandNameConstant: {
		start:            "Staging changes in %s",
		success:          "Staged changes in %s",
		failure:          "Failed to stage changes in %s",
		executionFailure: "Unable to stage changes in %s",
	},
	gitCommitSubcommandNameConstant: {
		start:            "Creating commit %s",
		success:          "Created commit %s",
		failure:          "Failed to create commit %s",
		executionFailure: "Unable to create commit %s",
	},
	gitPushSubcommandNameConstant: {
		start:            "Pushing %s",
		success:          "Pushed %s",
		failure:          "Failed to push %s",
		executionFailure: "Unable to push %s",
	},
}

var witAdminLifecycleTemplates = map[string]lifecycleTemplates{
	witAdminListTypesSubcommandNameConstant: {
		start:            "Listing work item types in %s",
		success:          "Listed work item types in %s",
		failure:          "Failed to list work item types in %s",
		executionFailure: "Unable to list work item types in %s",
	},
	witAdminExportTypeSubcommandNameConstant: {
		start:            "Exporting work item type %s",
		success:          "Exported work item type %s",
		failure:          "Failed to export work item type %s",
		executionFailure: "Unable to export work item type %s",
	},
	witAdminExportCategoriesSubcommandNameConstant: {
		start:            "Exporting categories for %s",
		success:          "Exported categories for %s",
		failure:          "Failed to export categories for %s",
		executionFailure: "Unable to export categories for %s",
	},
	witAdminExportProcessConfigSubcommandNameConstant: {
		start:            "Exporting process configuration for %s",
		success:          "Exported process configuration for %s",
		failure:          "Failed to export process configuration for %s",
		executionFailure: "Unable to export process configuration for %s",
	},
	witAdminExportGlobalListSubcommandNameConstant: {
		start:            "Exporting global list from %s",
		success:          "Exported global list from %s",
		failure:          "Failed to export global list from %s",
		executionFailure: "Unable to export global list from %s",
	},
}

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, InvocationResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a command that returned a result without failing.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand, result InvocationResult) string {
	if result.State == InvocationStateDetached {
		return fmt.Sprintf(genericDetachedTemplateConstant, formatter.formatCommandLabel(command))
	}
	return formatter.buildMessage(command, result, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result InvocationResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing a command that produced no result.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, InvocationResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result InvocationResult, failure error, stage messageStage) string {
	templates, subject, described := formatter.describeCommand(command)
	if !described {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, subject)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, subject)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, subject) + fmt.Sprintf(exitCodeSuffixTemplateConstant, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, subject) + fmt.Sprintf(standardErrorSuffixTemplateConstant, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeCommand(command ShellCommand) (lifecycleTemplates, string, bool) {
	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return lifecycleTemplates{}, emptyStringConstant, false
	}
	subcommand := strings.ToLower(strings.TrimSpace(arguments[0]))

	switch command.Name {
	case CommandGit:
		templates, known := gitLifecycleTemplates[subcommand]
		if !known {
			return lifecycleTemplates{}, emptyStringConstant, false
		}
		return templates, formatter.describeGitSubject(command, subcommand), true
	case CommandWitAdmin:
		templates, known := witAdminLifecycleTemplates[subcommand]
		if !known {
			return lifecycleTemplates{}, emptyStringConstant, false
		}
		return templates, formatter.describeWitAdminSubject(arguments, subcommand), true
	default:
		return lifecycleTemplates{}, emptyStringConstant, false
	}
}

func (formatter CommandMessageFormatter) describeGitSubject(command ShellCommand, subcommand string) string {
	arguments := command.Details.Arguments
	workingDirectory := formatter.describeWorkingDirectory(command)
	switch subcommand {
	case gitCloneSubcommandNameConstant:
		positional := formatter.positionalArguments(arguments[1:])
		if len(positional) == 0 {
			return fallbackUnknownValueLabelConstant
		}
		if len(positional) > 1 {
			return fmt.Sprintf(cloneSubjectTemplateConstant, positional[0], positional[1])
		}
		return positional[0]
	case gitCommitSubcommandNameConstant:
		return fmt.Sprintf(commitSubjectTemplateConstant, findFlagValue(arguments, gitMessageFlagConstant), workingDirectory)
	case gitPushSubcommandNameConstant:
		positional := formatter.positionalArguments(arguments[1:])
		if len(positional) > 1 {
			return fmt.Sprintf(pushSubjectTemplateConstant, positional[1], positional[0], workingDirectory)
		}
		return fmt.Sprintf(pushWithoutTargetSubjectTemplateConstant, workingDirectory)
	default:
		return workingDirectory
	}
}

func (formatter CommandMessageFormatter) describeWitAdminSubject(arguments []string, subcommand string) string {
	project := formatter.ensureValue(findWitAdminFlagValue(arguments, witAdminProjectFlagNameConstant))
	switch subcommand {
	case witAdminExportTypeSubcommandNameConstant:
		typeName := formatter.ensureValue(findWitAdminFlagValue(arguments, witAdminTypeNameFlagNameConstant))
		return fmt.Sprintf(exportTypeSubjectTemplateConstant, typeName, project, formatter.ensureValue(findWitAdminFlagValue(arguments, witAdminFileFlagNameConstant)))
	case witAdminExportGlobalListSubcommandNameConstant:
		return formatter.ensureValue(findWitAdminFlagValue(arguments, witAdminCollectionFlagNameConstant))
	default:
		return project
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result InvocationResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	return command.CommandLine() + formatter.formatWorkingDirectorySuffix(command)
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeWorkingDirectory(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return defaultWorkingDirectoryLabelConstant
	}
	return trimmedWorkingDirectory
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmed
}

func (formatter CommandMessageFormatter) positionalArguments(arguments []string) []string {
	positional := make([]string, 0, len(arguments))
	skipNext := false
	for _, argument := range arguments {
		if skipNext {
			skipNext = false
			continue
		}
		trimmed := strings.TrimSpace(argument)
		if strings.HasPrefix(trimmed, flagPrefixConstant) {
			skipNext = trimmed == gitBranchFlagConstant || trimmed == gitBranchShortFlagConstant
			continue
		}
		positional = append(positional, trimmed)
	}
	return positional
}

func findFlagValue(arguments []string, flag string) string {
	for index := 0; index < len(arguments)-1; index++ {
		if strings.TrimSpace(arguments[index]) == flag {
			return strings.TrimSpace(arguments[index+1])
		}
	}
	return emptyStringConstant
}

func findWitAdminFlagValue(arguments []string, flagName string) string {
	prefix := witAdminFlagPrefixConstant + flagName + witAdminFlagValueSeparatorConstant
	for _, argument := range arguments {
		trimmed := strings.TrimSpace(argument)
		if len(trimmed) > len(prefix) && strings.EqualFold(trimmed[:len(prefix)], prefix) {
			return trimmed[len(prefix):]
		}
	}
	return emptyStringConstant
}
