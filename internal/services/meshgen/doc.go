// Package meshgen talks to the asynchronous 3D generation provider: submit a
// job, poll its status, download the finished model.
package meshgen
