// Package registry persists the keyed ledger of item progress that makes
// repeated runs resumable. Entries are stored as raw field maps so upserts
// merge field-by-field and fields written by newer versions are never
// dropped by older readers.
package registry
