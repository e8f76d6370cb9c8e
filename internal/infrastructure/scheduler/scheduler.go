package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler drives recurring backup runs from cron expressions with a
// seconds field. Jobs run sequentially per cron's default behavior, which
// matches the one-archive-run-at-a-time model.
type Scheduler struct {
	cron *cron.Cron
	base context.Context
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		base: context.Background(),
	}
}

// WithContext makes scheduled jobs observe cancellation of ctx.
func (s *Scheduler) WithContext(ctx context.Context) *Scheduler {
	s.base = ctx
	return s
}

func (s *Scheduler) AddJob(spec string, job func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if s.base.Err() != nil {
			return
		}
		_ = job(s.base)
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
