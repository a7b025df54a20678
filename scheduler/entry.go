package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hhzhhzhhz/mirror-master/cron"
	"github.com/hhzhhzhhz/mirror-master/entity"
	"golang.org/x/sync/semaphore"
)

// jobEntry per job state. All fields but sem and inflight are guarded by mux.
type jobEntry struct {
	mux      sync.Mutex
	job      *entity.SyncJob
	schedule *cron.Schedule
	next     time.Time
	removed  bool
	lastRun  *entity.JobRunRecord
	sem      *semaphore.Weighted
	inflight int64
}

func newJobEntry(job *entity.SyncJob, schedule *cron.Schedule, maxInstances int) *jobEntry {
	return &jobEntry{
		job:      job,
		schedule: schedule,
		sem:      semaphore.NewWeighted(int64(maxInstances)),
	}
}

func (e *jobEntry) acquire() bool {
	if !e.sem.TryAcquire(1) {
		return false
	}
	atomic.AddInt64(&e.inflight, 1)
	return true
}

func (e *jobEntry) release() {
	atomic.AddInt64(&e.inflight, -1)
	e.sem.Release(1)
}

// reschedule recomputes next from now. Caller holds mux.
func (e *jobEntry) reschedule(now time.Time) {
	e.next = time.Time{}
	if e.job.Paused || e.schedule == nil {
		return
	}
	if next, ok := e.schedule.Next(now); ok {
		e.next = next
	}
}

// view caller holds mux.
func (e *jobEntry) view() *entity.JobView {
	v := &entity.JobView{
		SyncJob:  e.job.Clone(),
		Enabled:  !e.next.IsZero(),
		Running:  atomic.LoadInt64(&e.inflight),
		LastRun:  e.lastRun,
		Schedule: scheduleFields(e.job.CronOptions, e.schedule),
	}
	if !e.next.IsZero() {
		next := e.next
		v.NextRunTime = &next
	}
	return v
}

func scheduleFields(cs entity.CronSchedule, s *cron.Schedule) map[string]string {
	if s != nil {
		return s.Fields()
	}
	m := map[string]string{
		"minute":      cs.Minute.String(),
		"hour":        cs.Hour.String(),
		"day":         cs.Day.String(),
		"month":       cs.Month.String(),
		"day_of_week": cs.DayOfWeek.String(),
	}
	if cs.StartDate != "" {
		m["start_date"] = cs.StartDate.String()
	}
	return m
}
