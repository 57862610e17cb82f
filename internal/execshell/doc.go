// Package execshell runs external commands through the host shell.
//
// ProcessRunner launches one command line as a child process, captures its
// standard streams, and polls for completion until a timeout elapses. It
// reports every launch failure, timeout, and internal fault through the single
// ErrNoResult value. ShellExecutor layers tool-aware command construction,
// lifecycle events, and exit code interpretation on top of the runner for the
// git and witadmin collaborators.
package execshell
