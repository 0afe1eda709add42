// Package pipeline drives named places through the sprite generation
// stages one item at a time, recording one result per item and pacing
// calls to the upstream services.
package pipeline
