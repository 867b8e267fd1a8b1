// Package scheduler publishes due reminders every minute and removes expired events.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lomoval/sked/internal/occurrence"
	"github.com/lomoval/sked/internal/rabbit"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// maxCatchUp bounds how many missed minutes a delayed scan replays.
const maxCatchUp = 60

type Config struct {
	ReminderSpec string
	CleanupSpec  string
	// Retention is how long an expired event is kept before cleanup removes it.
	Retention time.Duration
	// Offset is the UTC offset in minutes reminders are resolved for.
	Offset int
}

type Reminders interface {
	DueReminders(ctx context.Context, instant time.Time, offset int) ([]occurrence.Reminder, error)
	RemoveExpired(ctx context.Context, before time.Time) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, m rabbit.Message) error
}

type Scheduler struct {
	config    Config
	reminders Reminders
	publisher Publisher
	now       func() time.Time

	mu       sync.Mutex
	lastScan time.Time
}

func New(config Config, reminders Reminders, publisher Publisher) *Scheduler {
	if config.ReminderSpec == "" {
		config.ReminderSpec = "* * * * *"
	}
	if config.CleanupSpec == "" {
		config.CleanupSpec = "@every 5m"
	}
	if config.Retention == 0 {
		config.Retention = 365 * 24 * time.Hour
	}
	return &Scheduler{config: config, reminders: reminders, publisher: publisher, now: time.Now}
}

// Run registers the jobs and blocks until ctx is done and running jobs finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.VerbosePrintfLogger(log.StandardLogger()))),
	)
	if _, err := c.AddFunc(s.config.ReminderSpec, func() {
		if _, err := s.ScanReminders(ctx); err != nil {
			log.Errorf("reminder scan failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", s.config.ReminderSpec, err)
	}
	if _, err := c.AddFunc(s.config.CleanupSpec, func() {
		if _, err := s.Cleanup(ctx); err != nil {
			log.Errorf("cleanup failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.config.CleanupSpec, err)
	}

	log.Infof("scheduler started: reminders %q, cleanup %q", s.config.ReminderSpec, s.config.CleanupSpec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("scheduler stopped")
	return nil
}

// ScanReminders publishes reminders for every minute since the previous scan up to now.
// It returns the number of published messages.
func (s *Scheduler) ScanReminders(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Truncate(time.Minute)
	from := now
	if !s.lastScan.IsZero() {
		from = s.lastScan.Add(time.Minute)
		if earliest := now.Add(-(maxCatchUp - 1) * time.Minute); from.Before(earliest) {
			log.Warnf("skipping reminders between %s and %s", from, earliest)
			from = earliest
		}
	}

	published := 0
	for minute := from; !minute.After(now); minute = minute.Add(time.Minute) {
		reminders, err := s.reminders.DueReminders(ctx, minute, s.config.Offset)
		if err != nil {
			return published, fmt.Errorf("failed to get reminders at %s: %w", minute, err)
		}
		for _, r := range reminders {
			log.Debugf("publishing reminder: event %s member %s", r.EventID, r.MemberID)
			if err := s.publisher.Publish(ctx, rabbit.NewMessage(r)); err != nil {
				return published, fmt.Errorf("failed to publish reminder for event %s: %w", r.EventID, err)
			}
			published++
		}
		s.lastScan = minute
	}
	return published, nil
}

// Cleanup removes events that ended more than the retention period ago.
func (s *Scheduler) Cleanup(ctx context.Context) (int, error) {
	n, err := s.reminders.RemoveExpired(ctx, s.now().UTC().Add(-s.config.Retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Infof("removed %d expired events", n)
	}
	return n, nil
}
