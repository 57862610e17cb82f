// Package gitrepo drives the git operations that keep an export workspace in
// sync with its remote repository.
//
// RepositoryManager issues every command through the execshell executor, so
// each git invocation inherits the process runner's polling and timeout rules.
package gitrepo
