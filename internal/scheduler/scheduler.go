package scheduler

import (
	"sort"
	"time"

	"github.com/go-co-op/gocron"
	models "kalkulludo/internal/models"
	session "kalkulludo/internal/session"
	util "kalkulludo/internal/util"
)

const limiterHardCap = 10000

// Scheduler runs the periodic housekeeping jobs: stale play sessions and
// stale per-IP rate limiters.
type Scheduler struct {
	scheduler *gocron.Scheduler
	app       *models.App
}

func New(app *models.App) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		app:       app,
	}
}

func (s *Scheduler) Start() {
	if _, err := s.scheduler.Every(10).Minutes().Do(func() {
		session.CleanupExpiredSessions(s.app)
	}); err != nil {
		util.LogWarn("Failed to schedule session cleanup: %v", err)
	}
	if _, err := s.scheduler.Every(30).Minutes().Do(s.cleanupStaleRateLimiters); err != nil {
		util.LogWarn("Failed to schedule rate limiter cleanup: %v", err)
	}
	s.scheduler.StartAsync()
	util.LogInfo("Started cleanup jobs for sessions and rate limiters")
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) cleanupStaleRateLimiters() {
	app := s.app
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := time.Now().Add(-app.RateLimiterTTL)
	removedCount := 0

	for key, entry := range app.LimiterMap {
		if entry.LastAccess.Before(cutoffTime) {
			delete(app.LimiterMap, key)
			removedCount++
		}
	}

	if len(app.LimiterMap) > limiterHardCap {
		util.LogInfo("Rate limiter map too large (%d entries), removing oldest half", len(app.LimiterMap))

		type limiterInfo struct {
			key        string
			lastAccess time.Time
		}
		limiters := make([]limiterInfo, 0, len(app.LimiterMap))
		for key, entry := range app.LimiterMap {
			limiters = append(limiters, limiterInfo{key: key, lastAccess: entry.LastAccess})
		}
		sort.Slice(limiters, func(i, j int) bool {
			return limiters[i].lastAccess.Before(limiters[j].lastAccess)
		})
		for i := 0; i < len(limiters)/2; i++ {
			delete(app.LimiterMap, limiters[i].key)
			removedCount++
		}
	}

	if removedCount > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removedCount)
	}
}
