// Package api exposes the chat history service over HTTP.
//
// Routes (JSON in and out):
//
//	GET    /health
//	PUT    /api/v1/schema                       ensure schema
//	GET    /api/v1/schema                       schema state
//	DELETE /api/v1/schema                       drop schema and documents
//	POST   /api/v1/documents                    add a document
//	GET    /api/v1/documents/{id}
//	DELETE /api/v1/documents/{id}
//	GET    /api/v1/users/{userId}/documents
//	DELETE /api/v1/users/{userId}/documents
//	GET    /api/v1/users/{userId}/sessions/{sessionId}/documents
//	DELETE /api/v1/users/{userId}/sessions/{sessionId}/documents
//	GET    /api/v1/users/{userId}/sessions/{sessionId}/history
//	POST   /api/v1/query                        hybrid query
//	POST   /api/v1/ask                          answer a question in a session
//
// Administrative routes answer with the operation's log messages.
package api
