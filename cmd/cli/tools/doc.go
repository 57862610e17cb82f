// Package tools provides the exec and locate commands, which expose the process runner and the
// witadmin locator directly for troubleshooting.
package tools
