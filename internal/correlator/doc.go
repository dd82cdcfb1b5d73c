// Package correlator matches replies to outstanding requests.
//
// A request owns a freshly generated reply topic. The responder publishes its
// answer using that reply topic as the message topic, and the first message
// completing on it resolves the request. Requests that receive no reply
// within their timeout fail with ErrTimeout.
//
// Key components:
//   - Correlator: pending table keyed by reply topic
//   - Future/Promise: read and write sides of a single request outcome
package correlator
