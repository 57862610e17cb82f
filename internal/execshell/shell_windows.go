//go:build windows

package execshell

import (
	"os"
	"os/exec"
	"strings"
	"syscall"
)

const (
	windowsShellEnvironmentVariableConstant = "ComSpec"
	windowsDefaultShellConstant             = "cmd.exe"
	windowsShellArgumentsTemplateConstant   = ` /S /C "`
	doubleQuoteConstant                     = `"`
	escapedDoubleQuoteConstant              = `\"`
	windowsSpecialCharactersConstant        = " \t\"&|<>^()%!"
)

func newShellCommand(commandText string) *exec.Cmd {
	shellPath := strings.TrimSpace(os.Getenv(windowsShellEnvironmentVariableConstant))
	if len(shellPath) == 0 {
		shellPath = windowsDefaultShellConstant
	}
	executable := exec.Command(shellPath)
	executable.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: doubleQuoteConstant + shellPath + doubleQuoteConstant + windowsShellArgumentsTemplateConstant + commandText + doubleQuoteConstant,
	}
	return executable
}

// validateCommandLine accepts every non-empty command; cmd.exe reports unknown programs through exit code 9009.
func validateCommandLine(string, string) error {
	return nil
}

// QuoteArgument renders a single argument so cmd.exe passes it through unchanged.
func QuoteArgument(argument string) string {
	if len(argument) > 0 && !strings.ContainsAny(argument, windowsSpecialCharactersConstant) {
		return argument
	}
	return doubleQuoteConstant + strings.ReplaceAll(argument, doubleQuoteConstant, escapedDoubleQuoteConstant) + doubleQuoteConstant
}
