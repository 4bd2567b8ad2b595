// Package redis implements storage.Store on Redis with the search module.
//
// Each schema maps to one search index over hashes prefixed "<index>:doc:".
// String fields that are filterable become TAG attributes, timestamps become
// sortable NUMERIC attributes in unix milliseconds, and the question vector
// becomes an HNSW FLOAT32 vector attribute. The schema definition, including
// its semantic configuration and TTL, is kept as JSON at "<index>:schema".
//
// Search behaves like a search engine: it fetches the K nearest neighbours
// across all users and reranks them with the rerank package. It reports
// SemanticRerank so callers apply the user filter and threshold themselves.
package redis
