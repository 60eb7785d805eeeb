// Package session owns one streaming connection at a time.
//
// A Session is driven by a single goroutine (the client event loop).
// Network work happens on helper goroutines that never touch Session
// state directly: they post Events to the inbox returned by Events, and
// the loop applies them with Dispatch. Every connection attempt carries a
// generation number; events from a superseded attempt are discarded, so
// two installed handles never coexist and a stale socket cannot deliver
// frames into the current one.
package session
