// Package export copies a collection's work item configuration into a git working copy.
//
// A run locates witadmin, clones or updates the workspace, exports the global list and every
// configured project's work item types, categories, and process configuration, records a
// manifest, and commits and pushes whatever changed. Scheduler repeats runs on an interval.
package export
