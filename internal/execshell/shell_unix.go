//go:build !windows

package execshell

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattn/go-shellwords"
)

const (
	unixShellPathConstant                  = "/bin/sh"
	unixShellCommandFlagConstant           = "-c"
	malformedCommandTemplateConstant       = "malformed command line: %w"
	executableNotFoundTemplateConstant     = "executable %q not found: %w"
	executableIsDirectoryTemplateConstant  = "executable %q is a directory"
	executableNotPermittedTemplateConstant = "executable %q is not executable"
	singleQuoteConstant                    = "'"
	escapedSingleQuoteConstant             = `'\''`
	subshellPrefixConstant                 = "("
	variableReferenceMarkerConstant        = "$"
	backtickMarkerConstant                 = "`"
	homeDirectoryMarkerConstant            = "~"
	executePermissionMaskConstant          = 0o111
)

var (
	unquotedArgumentPattern      = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)
	environmentAssignmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)
)

var shellBuiltinNames = map[string]struct{}{
	".": {}, ":": {}, "[": {}, "!": {}, "{": {}, "alias": {}, "bg": {}, "break": {}, "case": {},
	"cd": {}, "command": {}, "continue": {}, "echo": {}, "eval": {}, "exec": {}, "exit": {},
	"export": {}, "false": {}, "fg": {}, "for": {}, "getopts": {}, "hash": {}, "if": {},
	"jobs": {}, "kill": {}, "local": {}, "printf": {}, "pwd": {}, "read": {}, "readonly": {},
	"return": {}, "set": {}, "shift": {}, "source": {}, "test": {}, "time": {}, "times": {},
	"trap": {}, "true": {}, "type": {}, "ulimit": {}, "umask": {}, "unalias": {}, "unset": {},
	"until": {}, "wait": {}, "while": {},
}

func newShellCommand(commandText string) *exec.Cmd {
	return exec.Command(unixShellPathConstant, unixShellCommandFlagConstant, commandText)
}

// validateCommandLine rejects command lines the shell could not start a program for:
// unbalanced quoting and a leading executable that cannot be resolved.
func validateCommandLine(commandText string, workingDirectory string) error {
	if strings.HasPrefix(commandText, subshellPrefixConstant) {
		return nil
	}

	words, parseError := shellwords.NewParser().Parse(commandText)
	if parseError != nil {
		return fmt.Errorf(malformedCommandTemplateConstant, parseError)
	}

	executableName := leadingExecutable(words)
	if len(executableName) == 0 {
		return nil
	}
	return resolveExecutable(executableName, workingDirectory)
}

func leadingExecutable(words []string) string {
	for _, word := range words {
		if environmentAssignmentPattern.MatchString(word) {
			continue
		}
		if _, builtin := shellBuiltinNames[word]; builtin {
			return ""
		}
		if strings.Contains(word, variableReferenceMarkerConstant) || strings.Contains(word, backtickMarkerConstant) || strings.HasPrefix(word, homeDirectoryMarkerConstant) {
			return ""
		}
		return word
	}
	return ""
}

func resolveExecutable(executableName string, workingDirectory string) error {
	if !strings.Contains(executableName, string(os.PathSeparator)) {
		if _, lookupError := exec.LookPath(executableName); lookupError != nil {
			return fmt.Errorf(executableNotFoundTemplateConstant, executableName, lookupError)
		}
		return nil
	}

	executablePath := executableName
	if !filepath.IsAbs(executablePath) && len(workingDirectory) > 0 {
		executablePath = filepath.Join(workingDirectory, executablePath)
	}

	fileInfo, statError := os.Stat(executablePath)
	if statError != nil {
		return fmt.Errorf(executableNotFoundTemplateConstant, executableName, statError)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf(executableIsDirectoryTemplateConstant, executableName)
	}
	if fileInfo.Mode().Perm()&executePermissionMaskConstant == 0 {
		return fmt.Errorf(executableNotPermittedTemplateConstant, executableName)
	}
	return nil
}

// QuoteArgument renders a single argument so the host shell passes it through unchanged.
func QuoteArgument(argument string) string {
	if len(argument) > 0 && unquotedArgumentPattern.MatchString(argument) {
		return argument
	}
	return singleQuoteConstant + strings.ReplaceAll(argument, singleQuoteConstant, escapedSingleQuoteConstant) + singleQuoteConstant
}
