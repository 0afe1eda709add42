// Package services holds primitives shared by every external service client:
// sentinel error markers with wrapping helpers, and context annotations that
// carry item, stage, and correlation identifiers into structured logs.
package services
