// Package engine is the single dispatcher of the bot.
//
// Single-Writer Event Loop:
// Inbound chat messages, component interactions and scheduled tasks all go
// through one FIFO queue and are processed one at a time by Run (or by Drain
// in tests and the scenario harness). Timer callbacks are never run on the
// timer goroutine; the timer service hands them to Submit, so a giveaway
// draw or a round timeout is ordered with the chat events around it.
//
// Event Processing Flow:
//  1. The gateway adapter enqueues chat.Inbound events.
//  2. Run dequeues one event and stamps it with the next logical seq.
//  3. Commands go to the command router; other messages fan out to
//     presence, mention lookups, scramble guess, counting, activity XP and
//     assistant chat channels, in that order.
//  4. Replies are sent after every state change for the event is done.
//
// LLM calls are the one suspension point. They run on their own goroutine
// and come back through Submit to send their reply, so the loop never
// waits on the LLM.
//
// Failures are contained per event: they are logged as RuntimeError and the
// loop continues. Nothing in the dispatcher is fatal to the process.
package engine
