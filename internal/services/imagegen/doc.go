// Package imagegen synthesizes the sprite image for a place from its
// captured view and inferred metadata.
package imagegen
