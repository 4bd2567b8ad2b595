// Package mock provides an in-memory storage.Store for tests.
//
// MockStore keeps documents in a map and behaves like a real store by
// default. Each method can be overridden with a function field to script
// failures or search results, and calls are counted per method.
package mock
