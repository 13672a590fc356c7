// Package minigame runs time-bounded trivia and word-scramble rounds.
//
// Every round is Pending until exactly one resolution: Correct, Incorrect or
// Expired. The latch is the round's removal from the keyed store; whichever
// path removes it (an answer, a guess or the timeout) resolves the round,
// and every later attempt observes nothing and no-ops.
//
// Trivia is answered by choosing an option; only the round owner may
// answer. Scramble is resolved by the owner's next chat message in the
// channel the round was started in.
package minigame
