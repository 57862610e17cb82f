package tools

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/witexport/internal/witadmin"
)

const (
	locateUseConstant              = "locate"
	locateShortDescriptionConstant = "Print the path of the witadmin executable"
	locateLongDescriptionConstant  = "locate resolves witadmin the same way export does: the configured path, then PATH, then Visual Studio installation folders, newest first."
	locateToolFlagNameConstant     = "tool"
	locateToolFlagUsageConstant    = "Path to check before searching"
	locateOutputTemplateConstant   = "%s\n"
)

// ToolLocator resolves the witadmin executable.
type ToolLocator interface {
	Locate() (string, error)
}

// LocatorFactory constructs a locator for the configured path.
type LocatorFactory func(logger *zap.Logger, configuredPath string) ToolLocator

// LocateCommandBuilder assembles the locate command.
type LocateCommandBuilder struct {
	LoggerProvider   LoggerProvider
	ToolPathProvider func() string
	LocatorFactory   LocatorFactory
}

// Build constructs the locate command.
func (builder *LocateCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           locateUseConstant,
		Short:         locateShortDescriptionConstant,
		Long:          locateLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.run,
	}

	command.Flags().String(locateToolFlagNameConstant, "", locateToolFlagUsageConstant)

	return command, nil
}

func (builder *LocateCommandBuilder) run(command *cobra.Command, _ []string) error {
	configuredPath := ""
	if builder.ToolPathProvider != nil {
		configuredPath = builder.ToolPathProvider()
	}
	if command.Flags().Changed(locateToolFlagNameConstant) {
		configuredPath, _ = command.Flags().GetString(locateToolFlagNameConstant)
	}

	locatedPath, locateError := builder.resolveLocator(resolveLogger(builder.LoggerProvider), strings.TrimSpace(configuredPath)).Locate()
	if locateError != nil {
		return locateError
	}

	fmt.Fprintf(command.OutOrStdout(), locateOutputTemplateConstant, locatedPath)
	return nil
}

func (builder *LocateCommandBuilder) resolveLocator(logger *zap.Logger, configuredPath string) ToolLocator {
	if builder.LocatorFactory != nil {
		return builder.LocatorFactory(logger, configuredPath)
	}
	return witadmin.NewToolLocator(logger, configuredPath)
}
