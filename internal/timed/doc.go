// Package timed manages scheduled engagement events: giveaways, reminders
// and countdown timers.
//
// Every event is an independent task on the timer service. Giveaways also
// keep observable state in a keyed store (prize, host, participants); that
// state is removed exactly once, and the caller that removes it performs
// the draw. Expiry, an early end and a manual cancel all race on the same
// removal, so a giveaway can never be drawn twice.
//
// Reminders and timers have no stored state beyond the pending timer task
// and a small ownership index used to authorise cancellation.
package timed
