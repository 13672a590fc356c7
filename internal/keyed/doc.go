// Package keyed implements the keyed state store shared by every engagement
// feature.
//
// A Store maps an entity key (user id, channel id, round id) to a mutable
// record. Each feature owns its own Store; no two features write the same
// store.
//
// CONCURRENCY MODEL:
//
// The engine already processes events one at a time, but components are
// also reached from other goroutines (timer callbacks before they are handed
// to the dispatcher, background LLM completions, tests). Every mutating
// operation therefore holds a per-key lock for the duration of its
// read-modify-write:
//   - Update: read, transform, write or delete under the key lock
//   - LoadAndDelete: the exclusivity gate used for one-shot resolution
//     (giveaway draws, mini-game latches, AFK welcome-back)
//
// Key locks are reference counted and dropped once no caller holds them, so
// short-lived keys (round ids) do not accumulate.
//
// FIRST-SEEN ORDER:
//
// Every record carries the sequence number of the moment its key was
// materialised. Snapshot returns records in that order, which gives the
// leaderboard its stable tie-break.
package keyed
