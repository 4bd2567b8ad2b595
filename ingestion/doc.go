// Package ingestion bulk-loads conversation turns into the chat history.
//
// The Pipeline embeds the questions of documents that arrive without a
// vector, in batches and with retry, then adds every document through the
// history service on a bounded worker pool. Outcomes are aggregated into one
// ordered message list; one failed document does not stop the others.
package ingestion
