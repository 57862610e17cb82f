// Package ui renders command lifecycle events as concise console messages.
//
// Detailed telemetry keeps flowing through the structured loggers; the console
// logger only tells an operator what is running and how it ended.
package ui
