package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hhzhhzhhz/mirror-master/cron"
	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/infrastructure/storage"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
	"github.com/hhzhhzhhz/mirror-master/rsync"
)

var (
	ErrDuplicateJob   = errors.New("job already exists")
	ErrNotFound       = errors.New("job not found")
	ErrConcurrencyCap = errors.New("concurrency cap reached")
	ErrClosed         = errors.New("scheduler closed")
)

const (
	defaultWorkers      = 20
	defaultQueueSize    = 100
	defaultMaxInstances = 3
	defaultTick         = time.Minute
)

// Executor runs one job. Implemented by orchestrator.Orchestrator.
type Executor interface {
	// Execute blocks until the run ends.
	Execute(ctx context.Context, job *entity.SyncJob) *entity.JobRunRecord
	// Trigger returns once the upstream pull has started. done is called with
	// the record exactly once, and only when Trigger returns nil.
	Trigger(ctx context.Context, job *entity.SyncJob, done func(*entity.JobRunRecord)) error
}

type Options struct {
	Workers        int
	QueueSize      int // 0 drops firings while every worker is busy
	MaxInstances   int
	TickInterval   time.Duration
	RunMaxDuration time.Duration
	Location       *time.Location
	Defaults       rsync.Defaults
}

func (o *Options) fill() {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.QueueSize < 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.MaxInstances <= 0 {
		o.MaxInstances = defaultMaxInstances
	}
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTick
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
}

type work struct {
	entry *jobEntry
	job   *entity.SyncJob
}

// Scheduler owns the job set, the dispatch loop and the worker pool.
type Scheduler struct {
	opts    Options
	store   storage.SyncJob
	exec    Executor
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	mux     sync.RWMutex
	jobs    map[string]*jobEntry
	queue   chan *work
	loop    utils.WaitGroupWrapper
	workers utils.WaitGroupWrapper
	manual  utils.WaitGroupWrapper
	started int32
	closed  int32
}

func NewScheduler(store storage.SyncJob, exec Executor, opts Options) *Scheduler {
	opts.fill()
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:   opts,
		store:  store,
		exec:   exec,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*jobEntry),
		queue:  make(chan *work, opts.QueueSize),
	}
}

// Start loads persisted jobs then runs workers and the dispatch loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return fmt.Errorf("scheduler already started")
	}
	jobs, err := s.store.ListSyncJobs(ctx)
	if err != nil {
		return fmt.Errorf("Scheduler.Start load jobs failed cause=%s", err.Error())
	}
	now := s.now()
	s.mux.Lock()
	for _, job := range jobs {
		if _, ok := s.jobs[job.Id]; ok {
			continue
		}
		schedule, err := cron.Parse(job.CronOptions, s.opts.Location)
		if err != nil {
			log.Logger().Error("Scheduler.Start job_id=%s disabled cause=%s", job.Id, err.Error())
		}
		e := newJobEntry(job, schedule, s.opts.MaxInstances)
		e.reschedule(now)
		s.jobs[job.Id] = e
	}
	scheduledJobsGauge.Set(float64(len(s.jobs)))
	s.mux.Unlock()
	for i := 0; i < s.opts.Workers; i++ {
		s.workers.Wrap(s.worker)
	}
	s.loop.Wrap(s.dispatchLoop)
	if s.opts.QueueSize == 0 {
		log.Logger().Warn("Scheduler.Start queue_size=0 firings are dropped while all workers are busy")
	}
	log.Logger().Info("Scheduler.Start jobs=%d workers=%d queue=%d max_instances=%d tick=%s", len(jobs), s.opts.Workers, s.opts.QueueSize, s.opts.MaxInstances, s.opts.TickInterval)
	return nil
}

// Close stops dispatching, cancels in-flight runs and waits for them.
func (s *Scheduler) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	s.cancel()
	s.loop.Wait()
	s.workers.Wait()
	s.manual.Wait()
	log.Logger().Info("Scheduler.Close done")
	return nil
}

// Add registers a new job and persists it.
func (s *Scheduler) Add(ctx context.Context, job *entity.SyncJob) error {
	schedule, err := s.parse(job.CronOptions)
	if err != nil {
		return err
	}
	now := s.now()
	job = job.Clone()
	job.CreateTime, job.UpdateTime = now.Unix(), now.Unix()
	e := newJobEntry(job, schedule, s.opts.MaxInstances)
	e.mux.Lock()
	defer e.mux.Unlock()

	s.mux.Lock()
	if _, ok := s.jobs[job.Id]; ok {
		s.mux.Unlock()
		return fmt.Errorf("%w: id=%s", ErrDuplicateJob, job.Id)
	}
	s.jobs[job.Id] = e
	s.mux.Unlock()

	if _, err := s.store.CreateSyncJob(ctx, job); err != nil {
		e.removed = true
		s.mux.Lock()
		delete(s.jobs, job.Id)
		s.mux.Unlock()
		return fmt.Errorf("create job id=%s failed cause=%s", job.Id, err.Error())
	}
	e.reschedule(now)
	scheduledJobsGauge.Inc()
	log.Logger().Info("Scheduler.Add job_id=%s project=%s schedule=%s next=%s", job.Id, job.Project, schedule, utils.Time(e.next))
	return nil
}

// Remove deletes the job. Runs in flight finish; nothing new starts.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	e, err := s.lockEntry(id)
	if err != nil {
		return err
	}
	defer e.mux.Unlock()
	if _, err := s.store.DeleteSyncJob(ctx, id); err != nil {
		return fmt.Errorf("delete job id=%s failed cause=%s", id, err.Error())
	}
	e.removed = true
	e.next = time.Time{}
	s.mux.Lock()
	delete(s.jobs, id)
	s.mux.Unlock()
	scheduledJobsGauge.Dec()
	log.Logger().Info("Scheduler.Remove job_id=%s", id)
	return nil
}

func (s *Scheduler) Pause(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, true)
}

// Resume recomputes the next instant from the retained schedule.
func (s *Scheduler) Resume(ctx context.Context, id string) error {
	return s.setPaused(ctx, id, false)
}

func (s *Scheduler) setPaused(ctx context.Context, id string, paused bool) error {
	return s.mutate(ctx, id, func(job *entity.SyncJob) (*cron.Schedule, error) {
		job.Paused = paused
		return nil, nil
	})
}

// UpdateBasic merges non-schedule fields; empty strings and absent options keep stored values.
func (s *Scheduler) UpdateBasic(ctx context.Context, id string, req *entity.UpdateBasic) error {
	return s.mutate(ctx, id, func(job *entity.SyncJob) (*cron.Schedule, error) {
		if req.Project != "" {
			job.Project = req.Project
		}
		if req.RsyncHost != "" {
			job.RsyncHost = req.RsyncHost
		}
		if req.RsyncModule != "" {
			job.RsyncModule = req.RsyncModule
		}
		if req.Dest != "" {
			job.Dest = req.Dest
		}
		if req.RsyncPassword != "" {
			job.RsyncPassword = req.RsyncPassword
		}
		job.RsyncOptions = rsync.Merge(job.RsyncOptions, req.RsyncOptions, s.opts.Defaults)
		return nil, nil
	})
}

// UpdateSchedule replaces the whole schedule in place.
func (s *Scheduler) UpdateSchedule(ctx context.Context, id string, cs entity.CronSchedule) error {
	schedule, err := s.parse(cs)
	if err != nil {
		return err
	}
	return s.mutate(ctx, id, func(job *entity.SyncJob) (*cron.Schedule, error) {
		job.CronOptions = cs
		return schedule, nil
	})
}

// mutate applies fn to a copy of the job, persists it and swaps it in under the job lock.
func (s *Scheduler) mutate(ctx context.Context, id string, fn func(job *entity.SyncJob) (*cron.Schedule, error)) error {
	e, err := s.lockEntry(id)
	if err != nil {
		return err
	}
	defer e.mux.Unlock()
	job := e.job.Clone()
	schedule, err := fn(job)
	if err != nil {
		return err
	}
	now := s.now()
	job.UpdateTime = now.Unix()
	if _, err := s.store.UpdateSyncJob(ctx, job); err != nil {
		return fmt.Errorf("update job id=%s failed cause=%s", id, err.Error())
	}
	e.job = job
	if schedule != nil {
		e.schedule = schedule
	}
	e.reschedule(now)
	log.Logger().Info("Scheduler.Update job_id=%s paused=%t next=%s", id, job.Paused, utils.Time(e.next))
	return nil
}

// RunNow starts an out-of-band run and returns once the upstream pull is under way.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrClosed
	}
	e, err := s.lockEntry(id)
	if err != nil {
		return err
	}
	job := e.job.Clone()
	e.mux.Unlock()

	if !e.acquire() {
		jobDroppedCounter.WithLabelValues(reasonConcurrencyCap).Inc()
		log.Logger().Warn("Scheduler.RunNow job_id=%s dropped reason=%s", id, reasonConcurrencyCap)
		return fmt.Errorf("%w: id=%s max_instances=%d", ErrConcurrencyCap, id, s.opts.MaxInstances)
	}
	runCtx, cancel := s.runContext()
	s.manual.Add(1)
	err = s.exec.Trigger(runCtx, job, func(rec *entity.JobRunRecord) {
		defer s.manual.Done()
		defer e.release()
		defer cancel()
		s.record(e, rec)
	})
	if err != nil {
		cancel()
		e.release()
		s.manual.Done()
		return err
	}
	jobFiredCounter.WithLabelValues(string(entity.TriggerManual)).Inc()
	return nil
}

func (s *Scheduler) Get(id string) (*entity.JobView, error) {
	e, err := s.lockEntry(id)
	if err != nil {
		return nil, err
	}
	defer e.mux.Unlock()
	return e.view(), nil
}

// List every job sorted by id.
func (s *Scheduler) List() []*entity.JobView {
	entries := s.snapshot()
	views := make([]*entity.JobView, 0, len(entries))
	for _, e := range entries {
		e.mux.Lock()
		if !e.removed {
			views = append(views, e.view())
		}
		e.mux.Unlock()
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Id < views[j].Id })
	return views
}

// Has reports whether id is registered.
func (s *Scheduler) Has(id string) bool {
	s.mux.RLock()
	defer s.mux.RUnlock()
	_, ok := s.jobs[id]
	return ok
}

func (s *Scheduler) parse(cs entity.CronSchedule) (*cron.Schedule, error) {
	schedule, err := cron.Parse(cs, s.opts.Location)
	if err != nil {
		return nil, err
	}
	if _, ok := schedule.Next(s.now()); !ok {
		return nil, fmt.Errorf("%w: %s never fires", cron.ErrInvalidSchedule, schedule)
	}
	return schedule, nil
}

// lockEntry returns the entry with its mutex held.
func (s *Scheduler) lockEntry(id string) (*jobEntry, error) {
	s.mux.RLock()
	e, ok := s.jobs[id]
	s.mux.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	e.mux.Lock()
	if e.removed {
		e.mux.Unlock()
		return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
	}
	return e, nil
}

func (s *Scheduler) snapshot() []*jobEntry {
	s.mux.RLock()
	defer s.mux.RUnlock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	return entries
}

// runContext bounds a run by run_max_duration and by Close.
func (s *Scheduler) runContext() (context.Context, context.CancelFunc) {
	if s.opts.RunMaxDuration > 0 {
		return context.WithTimeout(s.ctx, s.opts.RunMaxDuration)
	}
	return context.WithCancel(s.ctx)
}

func (s *Scheduler) record(e *jobEntry, rec *entity.JobRunRecord) {
	if rec == nil {
		return
	}
	e.mux.Lock()
	e.lastRun = rec
	e.mux.Unlock()
}
