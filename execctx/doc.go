// Package execctx turns the upstream subgraph of an agent node into the
// ordered bundle of context packets handed to an agent invocation.
//
// Packet content is always the source payload verbatim. The only place text
// is shortened is the Preview projection, which exists for people, not for
// the agent call.
package execctx
