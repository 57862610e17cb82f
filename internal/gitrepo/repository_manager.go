package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/temirov/witexport/internal/execshell"
)

const (
	requiredValueMessageConstant          = "value required"
	executorNotConfiguredMessageConstant  = "git executor not configured"
	repositoryPathRequiredMessageConstant = "repository path required"
	remoteURLRequiredMessageConstant      = "remote url required"
	commitMessageRequiredMessageConstant  = "commit message required"
	branchNameRequiredMessageConstant     = "branch name required"
	gitOperationErrorTemplateConstant     = "git %s failed for %s: %w"
	repositoryInspectionTemplateConstant  = "unable to inspect %s: %w"
	gitMetadataDirectoryNameConstant      = ".git"
	gitCloneSubcommandConstant            = "clone"
	gitPullSubcommandConstant             = "pull"
	gitStatusSubcommandConstant           = "status"
	gitAddSubcommandConstant              = "add"
	gitCommitSubcommandConstant           = "commit"
	gitPushSubcommandConstant             = "push"
	gitRevParseSubcommandConstant         = "rev-parse"
	gitBranchFlagConstant                 = "--branch"
	gitFastForwardOnlyFlagConstant        = "--ff-only"
	gitPorcelainFlagConstant              = "--porcelain"
	gitAllFlagConstant                    = "--all"
	gitMessageFlagConstant                = "-m"
	gitAbbreviatedReferenceFlagConstant   = "--abbrev-ref"
	gitHeadReferenceConstant              = "HEAD"
	currentDirectoryPathspecConstant      = "."
)

// DefaultRemoteName is pushed to when no remote is named.
const DefaultRemoteName = "origin"

// ErrGitExecutorNotConfigured indicates that NewRepositoryManager received a nil executor.
var ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// ErrRepositoryPathRequired indicates an operation was called without a repository path.
var ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessageConstant)

// ErrRemoteURLRequired indicates Clone was called without a remote.
var ErrRemoteURLRequired = errors.New(remoteURLRequiredMessageConstant)

// ErrCommitMessageRequired indicates Commit was called with a blank message.
var ErrCommitMessageRequired = errors.New(commitMessageRequiredMessageConstant)

// ErrBranchNameRequired indicates Push was called without a branch.
var ErrBranchNameRequired = errors.New(branchNameRequiredMessageConstant)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.InvocationResult, error)
}

// RepositoryManager performs the git operations needed to keep an export workspace in sync with its remote.
type RepositoryManager struct {
	executor     GitExecutor
	pollInterval time.Duration
	timeout      time.Duration
}

// RepositoryManagerOption customizes a RepositoryManager.
type RepositoryManagerOption func(manager *RepositoryManager)

// WithCommandLimits sets the poll interval and timeout applied to every git invocation.
func WithCommandLimits(pollInterval time.Duration, timeout time.Duration) RepositoryManagerOption {
	return func(manager *RepositoryManager) {
		manager.pollInterval = pollInterval
		manager.timeout = timeout
	}
}

// NewRepositoryManager constructs a RepositoryManager backed by the provided executor.
func NewRepositoryManager(executor GitExecutor, options ...RepositoryManagerOption) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	manager := &RepositoryManager{executor: executor}
	for _, option := range options {
		if option != nil {
			option(manager)
		}
	}
	return manager, nil
}

// IsRepository reports whether repositoryPath contains git metadata.
func (manager *RepositoryManager) IsRepository(repositoryPath string) (bool, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return false, ErrRepositoryPathRequired
	}
	_, statError := os.Stat(filepath.Join(trimmedPath, gitMetadataDirectoryNameConstant))
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf(repositoryInspectionTemplateConstant, trimmedPath, statError)
}

// Clone clones remoteURL into repositoryPath. An empty branch clones the remote default branch.
func (manager *RepositoryManager) Clone(executionContext context.Context, remoteURL string, branch string, repositoryPath string) error {
	trimmedRemote := strings.TrimSpace(remoteURL)
	if len(trimmedRemote) == 0 {
		return ErrRemoteURLRequired
	}
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return ErrRepositoryPathRequired
	}

	arguments := []string{gitCloneSubcommandConstant}
	if trimmedBranch := strings.TrimSpace(branch); len(trimmedBranch) > 0 {
		arguments = append(arguments, gitBranchFlagConstant, trimmedBranch)
	}
	arguments = append(arguments, trimmedRemote, trimmedPath)

	_, executionError := manager.run(executionContext, "", arguments)
	if executionError != nil {
		return fmt.Errorf(gitOperationErrorTemplateConstant, gitCloneSubcommandConstant, trimmedPath, executionError)
	}
	return nil
}

// Pull fast-forwards the checked out branch from its upstream.
func (manager *RepositoryManager) Pull(executionContext context.Context, repositoryPath string) error {
	return manager.runInRepository(executionContext, repositoryPath, gitPullSubcommandConstant, gitFastForwardOnlyFlagConstant)
}

// HasPendingChanges reports whether the working tree differs from HEAD, including untracked files.
func (manager *RepositoryManager) HasPendingChanges(executionContext context.Context, repositoryPath string) (bool, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return false, ErrRepositoryPathRequired
	}
	result, executionError := manager.run(executionContext, trimmedPath, []string{gitStatusSubcommandConstant, gitPorcelainFlagConstant})
	if executionError != nil {
		return false, fmt.Errorf(gitOperationErrorTemplateConstant, gitStatusSubcommandConstant, trimmedPath, executionError)
	}
	return len(strings.TrimSpace(result.StandardOutput)) > 0, nil
}

// StageAll stages every change in the working tree.
func (manager *RepositoryManager) StageAll(executionContext context.Context, repositoryPath string) error {
	return manager.runInRepository(executionContext, repositoryPath, gitAddSubcommandConstant, gitAllFlagConstant, currentDirectoryPathspecConstant)
}

// Commit records the staged changes with the provided message.
func (manager *RepositoryManager) Commit(executionContext context.Context, repositoryPath string, message string) error {
	if len(strings.TrimSpace(message)) == 0 {
		return ErrCommitMessageRequired
	}
	return manager.runInRepository(executionContext, repositoryPath, gitCommitSubcommandConstant, gitMessageFlagConstant, message)
}

// Push publishes branch to the named remote, or to DefaultRemoteName when remoteName is blank.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, remoteName string, branch string) error {
	trimmedBranch := strings.TrimSpace(branch)
	if len(trimmedBranch) == 0 {
		return ErrBranchNameRequired
	}
	trimmedRemote := strings.TrimSpace(remoteName)
	if len(trimmedRemote) == 0 {
		trimmedRemote = DefaultRemoteName
	}
	return manager.runInRepository(executionContext, repositoryPath, gitPushSubcommandConstant, trimmedRemote, trimmedBranch)
}

// GetCurrentBranch returns the checked out branch name.
func (manager *RepositoryManager) GetCurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return "", ErrRepositoryPathRequired
	}
	result, executionError := manager.run(executionContext, trimmedPath, []string{gitRevParseSubcommandConstant, gitAbbreviatedReferenceFlagConstant, gitHeadReferenceConstant})
	if executionError != nil {
		return "", fmt.Errorf(gitOperationErrorTemplateConstant, gitRevParseSubcommandConstant, trimmedPath, executionError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

func (manager *RepositoryManager) runInRepository(executionContext context.Context, repositoryPath string, arguments ...string) error {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return ErrRepositoryPathRequired
	}
	if _, executionError := manager.run(executionContext, trimmedPath, arguments); executionError != nil {
		return fmt.Errorf(gitOperationErrorTemplateConstant, arguments[0], trimmedPath, executionError)
	}
	return nil
}

func (manager *RepositoryManager) run(executionContext context.Context, workingDirectory string, arguments []string) (execshell.InvocationResult, error) {
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: workingDirectory,
		PollInterval:     manager.pollInterval,
		Timeout:          manager.timeout,
	})
}
