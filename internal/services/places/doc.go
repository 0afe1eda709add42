// Package places resolves free-text place queries to canonical references and
// fetches their display names and type tags.
package places
