package engine

import (
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// Stats is a snapshot of component sizes.
type Stats struct {
	Users            int
	Away             int
	CountingChannels int
	Giveaways        int
	PendingTasks     int
	ActiveRounds     int
	Timers           int
	QueueLen         int
	PrunedHistories  int
}

// Housekeep prunes idle assistant histories and logs component sizes.
// Must run on the dispatcher; the scheduled job submits it there.
func (e *Engine) Housekeep() Stats {
	st := Stats{
		Users:            e.xp.Users(),
		Away:             e.presence.Away(),
		CountingChannels: e.counting.Channels(),
		Giveaways:        e.timed.Giveaways(),
		PendingTasks:     e.timed.PendingTasks(),
		ActiveRounds:     e.games.Active(),
		Timers:           e.timers.Pending(),
		QueueLen:         e.queue.Len(),
	}
	if e.assistant != nil {
		st.PrunedHistories = e.assistant.PruneIdle()
	}
	slog.Info("housekeeping",
		"users", st.Users,
		"away", st.Away,
		"counting_channels", st.CountingChannels,
		"giveaways", st.Giveaways,
		"pending_tasks", st.PendingTasks,
		"active_rounds", st.ActiveRounds,
		"timers", st.Timers,
		"queue", st.QueueLen,
		"pruned_histories", st.PrunedHistories,
	)
	return st
}

// startHousekeeping schedules Housekeep on the engine clock. It returns a
// nil scheduler when housekeeping is disabled.
func (e *Engine) startHousekeeping() (gocron.Scheduler, error) {
	interval := e.settings.Housekeeping
	if interval <= 0 {
		return nil, nil
	}

	sched, err := gocron.NewScheduler(gocron.WithClock(e.wall))
	if err != nil {
		return nil, fmt.Errorf("create housekeeping scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			e.Submit(func() { e.Housekeep() })
		}),
		gocron.WithName("housekeeping"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule housekeeping: %w", err)
	}
	sched.Start()
	slog.Info("housekeeping scheduled", "interval", interval)
	return sched, nil
}
