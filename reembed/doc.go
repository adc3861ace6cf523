// Package reembed recomputes the stored embeddings of clinical cases,
// typically after the embedding model changed.
//
// Cases are read in batches, embedded with retry and written to the vector
// index as unit vectors so cosine similarity stays comparable across runs.
package reembed
