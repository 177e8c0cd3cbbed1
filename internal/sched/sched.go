// Package sched runs the bot's periodic jobs on cron expressions.
package sched

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	c   *cron.Cron
	log *zap.Logger
}

func New(log *zap.Logger) *Runner {
	return &Runner{c: cron.New(), log: log}
}

// Add registers fn on the given cron spec. Jobs are expected to handle
// their own errors; a job that panics would take the runner down, so they
// must not.
func (r *Runner) Add(spec, name string, fn func()) error {
	_, err := r.c.AddFunc(spec, func() {
		r.log.Debug("scheduled job running", zap.String("job", name))
		fn()
	})
	return err
}

func (r *Runner) Start() {
	r.c.Start()
}

// Stop halts scheduling; running jobs finish on their own.
func (r *Runner) Stop() {
	r.c.Stop()
}
