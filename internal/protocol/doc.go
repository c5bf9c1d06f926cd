// Package protocol owns the MoldUDP64 wire contract: byte-level decoding
// primitives, the message-type schema catalog, the non-allocating output
// renderer, and the framed packet decoder built on top of them.
//
// Ownership boundary:
//   - wire: big-endian extraction, fixed-width sanitization
//   - schema: message catalog (msg_type -> field layout)
//   - render: cursor-bounded output buffer
//   - mold: packet framing and dispatch
package protocol
