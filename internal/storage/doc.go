// Package storage persists the last-known state of every announcement, keyed by
// (site, external id).
//
// Callers acquire a Handle per unit of work (one poll) and release it when done;
// handles are never shared across goroutines. Every write is committed before the
// call returns.
package storage
