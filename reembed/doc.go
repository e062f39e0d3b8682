// Package reembed rebuilds a corpus with a new or updated embedding model.
//
// The documents of an existing corpus are read from its metadata file,
// embedded again in batches with retry and exponential backoff, and written
// into a fresh corpus directory. The source corpus is never modified, so a
// failed rebuild can simply be discarded.
package reembed
