// Package corpus keeps a flat vector index and a JSON document store in step.
//
// A corpus directory holds two files, vectors.bin and metadata.json. Entry i
// of one always describes entry i of the other. Append writes to both or to
// neither, and View gives readers a consistent snapshot.
//
//	c, err := corpus.Open("/var/lib/minutes", 384)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ordinal, err := c.Append(vec, record)
package corpus
