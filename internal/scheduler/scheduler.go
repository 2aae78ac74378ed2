package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/moisture-alerts/internal/notify"
)

// StatsSource exposes pipeline counters.
type StatsSource interface {
	Stats() notify.Stats
}

// Scheduler periodically logs notification pipeline counters.
type Scheduler struct {
	scheduler *gocron.Scheduler
	source    StatsSource
	interval  time.Duration

	last notify.Stats
}

// New creates a new Scheduler.
func New(interval time.Duration, source StatsSource) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		source:    source,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().WaitForSchedule().Do(s.report)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// report logs the counters and how much they moved since the previous report.
func (s *Scheduler) report() {
	cur := s.source.Stats()
	prev := s.last
	s.last = cur

	log.Printf("INFO: scheduler: notifications submitted=%d(+%d) skipped=%d dropped=%d(+%d) dispatched=%d(+%d) failed=%d(+%d) delivered=%d undelivered=%d no_recipients=%d",
		cur.Submitted, cur.Submitted-prev.Submitted,
		cur.Skipped,
		cur.Dropped, cur.Dropped-prev.Dropped,
		cur.Dispatched, cur.Dispatched-prev.Dispatched,
		cur.Failed, cur.Failed-prev.Failed,
		cur.Delivered, cur.Undelivered, cur.NoRecipients,
	)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
