package tasks

import (
	"context"
	"time"

	"github.com/fintalk-ai/fintalk/internal/sessionstore"
)

// newSessionCleanupTask creates the scheduled task that drops idle
// in-memory sessions and, when the memory snapshot driver is in use,
// sweeps expired snapshots. Redis expires its own keys.
func newSessionCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "session_cleanup")

	return func(ctx context.Context) error {
		startTime := time.Now()

		expired := deps.Sessions.ExpireIdle(deps.Config.Session.TTL)

		swept := 0
		if mem, ok := deps.Snapshots.(*sessionstore.MemoryStore); ok {
			swept = mem.Sweep()
		}

		log.InfoContext(ctx, "Session cleanup completed",
			"sessions_expired", expired,
			"snapshots_swept", swept,
			"resident_sessions", deps.Sessions.Len(),
			"duration", time.Since(startTime))
		return nil
	}
}
