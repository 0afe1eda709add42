// Package capture obtains a single rendered view of a place from a headless
// rendering surface, polling for content readiness instead of sleeping a
// fixed settle delay.
package capture
