// Package flat implements storage.VectorIndex as an exact brute-force index.
//
// Every search scans all stored vectors and ranks them by squared Euclidean
// distance. The index is persisted as a single binary file; see
// storage.MarshalIndex for the layout.
package flat
