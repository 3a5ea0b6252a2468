// Package selection keeps the timeline selection and highlight state of every
// app slot on a wall of screens in sync.
//
// The Engine owns a Store and applies bus messages to it on one goroutine.
// Local intents are published and only take effect when they come back from
// the bus, so every process applies the same sequence of absolute mutations.
// HighlightClock decays highlights against a shared counter and Reconciler
// republishes each app's own selections to repair lost messages.
package selection
