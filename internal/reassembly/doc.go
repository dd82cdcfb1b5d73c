// Package reassembly turns a stream of envelopes sharing a topic back into
// the logical payload they were cut from.
//
// At most one transmission per topic is tracked at a time. Fragments of two
// interleaved transmissions on the same topic with the same fragment count
// overwrite each other's slots; a conflicting fragment count aborts the
// entry. Incomplete entries are evicted silently after a fixed timeout.
package reassembly
