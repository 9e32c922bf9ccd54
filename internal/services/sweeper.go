package services

import (
	"context"
	"fmt"
	"time"

	"meet-signal/pkg/logger"

	"github.com/robfig/cron/v3"
)

// RoomSweeper deletes empty rooms older than retention and reports how many went.
type RoomSweeper interface {
	SweepEmptyRooms(retention time.Duration) int
}

// Sweeper periodically evicts stale empty rooms.
type Sweeper struct {
	target    RoomSweeper
	interval  time.Duration
	retention time.Duration
	quartz    *cron.Cron
}

func NewSweeper(target RoomSweeper, interval, retention time.Duration) *Sweeper {
	cronLogger := cron.PrintfLogger(logger.GlobalLogger.Zerolog())
	return &Sweeper{
		target:    target,
		interval:  interval,
		retention: retention,
		quartz: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.quartz.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule room sweep: %w", err)
	}
	s.quartz.Start()
	logger.Info("Room sweeper started (every %s, retention %s)", s.interval, s.retention)
	return nil
}

// RunOnce performs a single sweep and returns the number of rooms removed.
func (s *Sweeper) RunOnce() int {
	n := s.target.SweepEmptyRooms(s.retention)
	if n > 0 {
		logger.Info("Swept %d stale empty rooms", n)
	} else {
		logger.Debug("Room sweep found nothing to evict")
	}
	return n
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.quartz.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
