// Package store provides durable storage for users, bot records, and
// per-bot command flags, backed by SQLite. Bot records are keyed by
// credential with a public id for API use; command flags are keyed by
// bot id so the credential is stored exactly once.
package store
