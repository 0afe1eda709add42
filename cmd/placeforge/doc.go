// Package main hosts the placeforge CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the two generation pipelines, inspects
// the item registry, and scaffolds configuration. It centralizes config
// resolution and logger setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
