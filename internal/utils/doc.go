// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the ConfigurationLoader, which merges embedded defaults, configuration
// files, and WITEXPORT_ environment variables through Viper, and the LoggerFactory,
// which builds the zap loggers for structured and console output.
package utils
