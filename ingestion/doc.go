// Package ingestion provides the indexing path for documents.
//
// The Pipeline type turns text plus metadata into a corpus entry:
//   - Validating the document and assigning an id when none is given
//   - Generating the embedding, bounded by a timeout
//   - Appending vector and document to the corpus as one unit
//
// AddDocuments embeds batches concurrently using a worker pool and then
// commits documents one at a time in input order, stopping at the first
// failure.
package ingestion
