// Package cli constructs the witexport command-line interface. It wires the
// Cobra command hierarchy, the Viper-backed configuration loader with its
// embedded defaults, and the zap loggers shared by the export, exec, and
// locate commands.
package cli
