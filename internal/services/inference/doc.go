// Package inference asks a vision-capable model to classify a captured place
// view into the closed metadata schema the registry stores.
package inference
