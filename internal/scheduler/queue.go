// Package scheduler runs named one-shot jobs at a future time on top of a
// robfig/cron runner. At most one job is pending per name.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"paypal-gateway/internal/common/logging"
)

// Job is the work run when a schedule fires
type Job func(ctx context.Context) error

type pendingJob struct {
	id  cron.EntryID
	at  time.Time
	seq uint64
}

// Queue is a delayed-execution queue keyed by job name
type Queue struct {
	cron   *cron.Cron
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]pendingJob
	seq  uint64
}

// NewQueue creates a stopped queue. Jobs scheduled before Start fire once it runs.
func NewQueue(logger logging.Logger) *Queue {
	if logger == nil {
		logger = logging.Component("scheduler")
	}
	adapter := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]pendingJob),
	}
}

// ScheduleOnce runs job at the given time, replacing any pending job of the
// same name. A time in the past fires as soon as the queue runs.
func (q *Queue) ScheduleOnce(name string, at time.Time, job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if prev, ok := q.jobs[name]; ok {
		q.cron.Remove(prev.id)
	}

	q.seq++
	seq := q.seq
	id := q.cron.Schedule(&onceSchedule{at: at}, cron.FuncJob(func() {
		q.run(name, seq, job)
	}))
	q.jobs[name] = pendingJob{id: id, at: at, seq: seq}

	q.logger.Debug("Scheduled job",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "at", Value: at.Format(time.RFC3339)},
	)
}

func (q *Queue) run(name string, seq uint64, job Job) {
	q.mu.Lock()
	current, ok := q.jobs[name]
	if !ok || current.seq != seq {
		q.mu.Unlock()
		return
	}
	delete(q.jobs, name)
	q.cron.Remove(current.id)
	q.mu.Unlock()

	start := time.Now()
	if err := job(q.ctx); err != nil {
		q.logger.Error("Scheduled job failed", err, logging.Field{Key: "job", Value: name})
		return
	}
	q.logger.Info("Scheduled job completed",
		logging.Field{Key: "job", Value: name},
		logging.Field{Key: "duration", Value: time.Since(start).String()},
	)
}

// Pending returns when the named job is due
func (q *Queue) Pending(name string) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[name]
	return job.at, ok
}

// Cancel drops a pending job; it reports whether one existed
func (q *Queue) Cancel(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[name]
	if ok {
		q.cron.Remove(job.id)
		delete(q.jobs, name)
	}
	return ok
}

// Start runs the underlying cron scheduler
func (q *Queue) Start() {
	q.cron.Start()
}

// Stop halts the runner, cancels the context passed to running jobs and
// waits for them until ctx is done.
func (q *Queue) Stop(ctx context.Context) error {
	done := q.cron.Stop()
	q.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onceSchedule yields its time once and then never again
type onceSchedule struct {
	at    time.Time
	fired bool
}

func (s *onceSchedule) Next(now time.Time) time.Time {
	if s.fired {
		return time.Time{}
	}
	s.fired = true
	if s.at.Before(now) {
		return now
	}
	return s.at
}

// cronLogger adapts logging.Logger to cron.Logger
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, err, pairs(keysAndValues)...)
}

func pairs(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.Field{Key: fmt.Sprint(keysAndValues[i]), Value: keysAndValues[i+1]})
	}
	return fields
}
