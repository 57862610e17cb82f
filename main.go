package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/temirov/witexport/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
	defaultExitCodeConstant   = 1
)

type exitCoder interface {
	ExitCode() int
}

// main executes the witexport command-line application.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}

	var codedError exitCoder
	if errors.As(executionError, &codedError) {
		os.Exit(codedError.ExitCode())
	}

	fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	os.Exit(defaultExitCodeConstant)
}
