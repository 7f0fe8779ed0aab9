// Package sched drives the periodic valuation cycle. It wraps robfig/cron so
// an overrunning cycle causes the next firing to be skipped instead of two
// cycles running at once.
package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{log: logger}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl))),
		log:  logger,
	}
}

// AddCycle schedules job at the fixed interval. Start it only after
// initialization has completed; nothing fires before Start.
func (s *Scheduler) AddCycle(every time.Duration, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), func() {
		ctx, cancel := context.WithTimeout(context.Background(), every)
		defer cancel()
		if err := job(ctx); err != nil {
			s.log.Error("valuation cycle failed", "err", err)
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any) {
	c.log.Info(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Error(msg, append(kv, "err", err)...)
}
