// Package modelqueue turns registered sprites into 3D models through an
// asynchronous generation service: a submit phase that starts one job per
// eligible item, then a polling phase that sweeps the outstanding jobs at
// an interval derived from the provider's queue position hints.
package modelqueue
