// Package registry owns the mapping from bot credential to live gateway
// connection and drives the bot lifecycle state machine.
//
// # Connection Registry
//
// The Registry holds at most one live connection per credential. All
// lifecycle operations on the same credential are serialized through a
// per-credential lock, so a start racing a stop can never leak a handle
// or leave a registry entry pointing at a dead connection. Operations on
// different credentials proceed fully in parallel.
//
// Start is idempotent: any number of concurrent starts for the same
// credential collapse into a single gateway connect, and every caller
// observes the same resulting state.
//
// # Durable State
//
// Each live connection is mirrored by a persisted bot record. On boot,
// RestoreAll reconnects every record left in status online by the
// previous process, fanning out per record so one bad credential cannot
// delay the rest. Records whose restore fails stay online and are retried
// by RunRetryLoop; only a credential the gateway permanently rejects is
// flipped to offline.
//
// Graceful shutdown disconnects all live connections without touching
// persisted status, which is what makes restore-on-boot work.
//
// # Events
//
// Inbound gateway events are filtered (self-authored messages dropped,
// redeliveries deduplicated) and handed to the configured MessageHandler;
// its reply, if any, is sent back through the event's Actions.
package registry
