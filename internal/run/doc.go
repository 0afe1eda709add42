// Package run holds the primitives shared by both pipelines: the run mode,
// per-item results, and the per-run summary collector.
package run
