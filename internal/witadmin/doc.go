// Package witadmin drives the work item tracking administration tool.
//
// ToolLocator finds the executable on the local machine and Client issues the
// list and export subcommands through the execshell executor.
package witadmin
