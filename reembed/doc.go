// Package reembed rewrites the question vectors of stored chat documents,
// typically after the embedding model changed.
//
// Documents are read page by page through the storage contract, their
// questions embedded in batches with retry and exponential backoff, and the
// documents upserted in place. Progress is written to an io.Writer.
//
// The vector index dimension is fixed by the schema. When the new model
// produces vectors of a different length, drop and recreate the schema
// before re-embedding.
package reembed
