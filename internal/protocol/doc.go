// Package protocol defines the events exchanged with editor clients.
//
// Every websocket frame is a JSON envelope:
//
//	{"type": "codeChange", "data": {"code": "x = 1"}}
//
// Inbound events form a closed set (see Inbound); Decode parses a frame into
// one of them and Validate checks its mandatory fields. Outbound events are
// encoded with Encode.
package protocol
