// Package envelope implements the wire record used to carry a single fragment
// of a bus message over a size-constrained transport, and the codec that
// splits a serialized value into fragments and joins them back together.
//
// Wire format:
//
//	{"id":"<topic>","requesterId":"<reply topic or empty>","value":"<chunk>","i":<index>,"t":<last index>}
//
// Values are serialized as {"v":<value>} before splitting, so any JSON value
// (including null) survives a round trip.
//
// Design decisions:
//   - Size budget: the chunk budget is derived from the real serialized overhead
//     of an envelope for the given topic and reply topic, with the numeric
//     fields reserved at a fixed digit width (3 by default). When a message
//     needs more fragments than that width allows, the reservation grows and
//     the split is recomputed for that message only.
//   - Escaping: chunks are cut at rune boundaries and every rune is charged
//     the worst case number of bytes it may occupy inside a JSON string, so a
//     serialized envelope never exceeds the transport limit.
//   - Decoding: the concatenated chunks are validated with gjson and the raw
//     "v" member is returned untouched; callers decide how to unmarshal it.
//
// Example usage:
//
//	fragments, err := envelope.Encode("chat", "", map[string]string{"hello": "world"}, 512)
//	if err != nil {
//	    return err
//	}
//	for _, f := range fragments {
//	    raw, err := envelope.Marshal(f)
//	    ...
//	}
package envelope
