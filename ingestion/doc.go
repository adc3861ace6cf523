// Package ingestion stores incoming medical cases and enriches them
// asynchronously.
//
// Ingest validates and stores cases synchronously. Enrichment runs on a
// worker pool in batches:
//   - missing urgency, ICD-10 codes and specialty are inferred by a case analyzer
//   - cases without an abstract get a generated description
//   - every case with text gets an embedding in the vector index
//
// Errors during async processing are logged and reported to the optional
// error handler; they never fail the ingestion call. Wait blocks until every
// submitted batch has been processed.
package ingestion
