// Package objectstore uploads sprite artifacts so the asynchronous model
// generation provider can fetch them by URL.
package objectstore
