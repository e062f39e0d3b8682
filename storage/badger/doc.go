// Package badger provides BadgerDB-backed storage for the embedding cache.
//
// Embeddings are keyed by a content hash of the model name and text and
// stored as mus-go encoded float32 slices, so repeated indexing of the same
// transcript and repeated queries skip the embedding provider.
//
//	c, err := badger.OpenEmbeddingCache("/var/cache/minutes", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	embedder, err := cached.New(provider, c, "all-minilm")
package badger
