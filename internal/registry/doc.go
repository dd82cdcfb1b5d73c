// Package registry keeps the subscriber sets of persistent topics and
// broadcasts completed messages to them.
//
// Handlers of a topic are kept in subscription order. Unsubscribing is coarse
// grained: it drops every handler registered for the topic.
package registry
