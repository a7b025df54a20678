package scheduler

import (
	"time"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
)

// dispatchLoop wakes on tick boundaries and fires due jobs.
func (s *Scheduler) dispatchLoop() {
	tick := s.opts.TickInterval
	for {
		now := s.now()
		timer := time.NewTimer(now.Truncate(tick).Add(tick).Sub(now))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.dispatch(s.now())
		}
	}
}

// dispatch fires every job due at or before now once and advances it past now.
// Missed instants are not replayed.
func (s *Scheduler) dispatch(now time.Time) {
	defer utils.Recover("Scheduler.dispatch")
	for _, e := range s.snapshot() {
		e.mux.Lock()
		if e.removed || e.next.IsZero() || e.next.After(now) {
			e.mux.Unlock()
			continue
		}
		job := e.job.Clone()
		e.reschedule(now)
		if e.next.IsZero() {
			log.Logger().Warn("Scheduler.dispatch job_id=%s has no further due instant", job.Id)
		}
		e.mux.Unlock()
		s.fire(e, job)
	}
	queueDepthGauge.Set(float64(len(s.queue)))
}

// fire never blocks: a full semaphore or queue drops the firing.
func (s *Scheduler) fire(e *jobEntry, job *entity.SyncJob) {
	if !e.acquire() {
		jobDroppedCounter.WithLabelValues(reasonConcurrencyCap).Inc()
		log.Logger().Warn("Scheduler.fire job_id=%s dropped reason=%s max_instances=%d", job.Id, reasonConcurrencyCap, s.opts.MaxInstances)
		return
	}
	select {
	case s.queue <- &work{entry: e, job: job}:
		jobFiredCounter.WithLabelValues(string(entity.TriggerSchedule)).Inc()
	default:
		e.release()
		jobDroppedCounter.WithLabelValues(reasonQueueFull).Inc()
		log.Logger().Warn("Scheduler.fire job_id=%s dropped reason=%s queue=%d", job.Id, reasonQueueFull, cap(s.queue))
	}
}

func (s *Scheduler) worker() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case w := <-s.queue:
			if s.ctx.Err() != nil {
				w.entry.release()
				jobDroppedCounter.WithLabelValues(reasonClosed).Inc()
				return
			}
			s.run(w)
		}
	}
}

func (s *Scheduler) run(w *work) {
	defer w.entry.release()
	defer utils.Recover("Scheduler.run job_id=" + w.job.Id)
	ctx, cancel := s.runContext()
	defer cancel()
	s.record(w.entry, s.exec.Execute(ctx, w.job))
}
