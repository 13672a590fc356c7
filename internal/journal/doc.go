// Package journal is an append-only SQLite log of engagement outcomes:
// level-ups, giveaway draws, round resolutions, deliveries and counting
// resets.
//
// The journal is for audit and the trace command only. Engagement state is
// volatile and is never rebuilt from it; the only value read back at
// startup is the last sequence number, so the engine clock keeps counting
// up across restarts.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads (trace) while the bot writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection: SQLite has a single writer
package journal
