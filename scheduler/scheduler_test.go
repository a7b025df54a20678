package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hhzhhzhhz/mirror-master/client"
	"github.com/hhzhhzhhz/mirror-master/cron"
	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/infrastructure"
	"github.com/hhzhhzhhz/mirror-master/infrastructure/storage"
	"github.com/hhzhhzhhz/mirror-master/orchestrator"
	"github.com/hhzhhzhhz/mirror-master/rsync"
	json "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 3, 10, 0, 30, 0, time.UTC)

type fakeExec struct {
	mux   sync.Mutex
	runs  []string
	hold  chan struct{}
	fail  error
	count int32
}

func (f *fakeExec) note(job *entity.SyncJob) {
	atomic.AddInt32(&f.count, 1)
	f.mux.Lock()
	f.runs = append(f.runs, job.Id)
	f.mux.Unlock()
}

func (f *fakeExec) wait(ctx context.Context) {
	if f.hold == nil {
		return
	}
	select {
	case <-f.hold:
	case <-ctx.Done():
	}
}

func (f *fakeExec) Execute(ctx context.Context, job *entity.SyncJob) *entity.JobRunRecord {
	f.note(job)
	f.wait(ctx)
	return &entity.JobRunRecord{JobId: job.Id, Trigger: entity.TriggerSchedule, Outcome: entity.OutcomeSuccess}
}

func (f *fakeExec) Trigger(ctx context.Context, job *entity.SyncJob, done func(*entity.JobRunRecord)) error {
	if f.fail != nil {
		return f.fail
	}
	f.note(job)
	go func() {
		f.wait(ctx)
		done(&entity.JobRunRecord{JobId: job.Id, Trigger: entity.TriggerManual, Outcome: entity.OutcomeSuccess})
	}()
	return nil
}

func newStore(t *testing.T) storage.Factory {
	xdb, err := storage.Open(storage.DriverSqlite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { xdb.Close() })
	require.NoError(t, storage.Migrate(context.Background(), xdb))
	return storage.NewFactory(xdb)
}

func newTestScheduler(t *testing.T, store storage.SyncJob, exec Executor, opts Options) *Scheduler {
	opts.Defaults = rsync.Defaults{Options: []string{"-avz"}}
	s := NewScheduler(store, exec, opts)
	s.now = func() time.Time { return base }
	t.Cleanup(func() { s.Close() })
	return s
}

func job(id string, cs entity.CronSchedule) *entity.SyncJob {
	return &entity.SyncJob{
		Id:           id,
		Project:      id,
		RsyncHost:    "up.example",
		RsyncModule:  "mod",
		Dest:         "/data",
		RsyncOptions: entity.OptionSet{Basic: []string{"--exclude=tmp"}, Defaults: []string{"-avz"}},
		CronOptions:  cs,
	}
}

func every5() entity.CronSchedule {
	return entity.CronSchedule{Minute: "*/5"}
}

func Test_Add(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s := newTestScheduler(t, store, &fakeExec{}, Options{})

	require.NoError(t, s.Add(ctx, job("alpha", every5())))
	err := s.Add(ctx, job("alpha", every5()))
	assert.True(t, errors.Is(err, ErrDuplicateJob))

	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.True(t, v.Enabled)
	require.NotNil(t, v.NextRunTime)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 5, 0, 0, time.UTC), *v.NextRunTime)

	stored, err := store.GetSyncJob(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, base.Unix(), stored.CreateTime)
	assert.True(t, s.Has("alpha"))
	assert.False(t, s.Has("beta"))
}

func Test_Add_InvalidSchedule(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, newStore(t), &fakeExec{}, Options{})

	err := s.Add(ctx, job("feb", entity.CronSchedule{Day: "31", Month: "2"}))
	assert.True(t, errors.Is(err, cron.ErrInvalidSchedule))
	err = s.Add(ctx, job("bad", entity.CronSchedule{Minute: "61"}))
	assert.True(t, errors.Is(err, cron.ErrInvalidSchedule))
	assert.Empty(t, s.List())
}

func Test_Remove(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s := newTestScheduler(t, store, &fakeExec{}, Options{})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))

	require.NoError(t, s.Remove(ctx, "alpha"))
	assert.True(t, errors.Is(s.Remove(ctx, "alpha"), ErrNotFound))
	_, err := s.Get("alpha")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = store.GetSyncJob(ctx, "alpha")
	assert.True(t, storage.IsNotFound(err))
}

func Test_PauseResume(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	exec := &fakeExec{}
	s := newTestScheduler(t, store, exec, Options{QueueSize: 10})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))

	require.NoError(t, s.Pause(ctx, "alpha"))
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.False(t, v.Enabled)
	assert.Nil(t, v.NextRunTime)
	stored, err := store.GetSyncJob(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, stored.Paused)

	s.dispatch(base.Add(10 * time.Minute))
	assert.Len(t, s.queue, 0)

	s.now = func() time.Time { return base.Add(12 * time.Minute) }
	require.NoError(t, s.Resume(ctx, "alpha"))
	v, err = s.Get("alpha")
	require.NoError(t, err)
	assert.True(t, v.Enabled)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 15, 0, 0, time.UTC), *v.NextRunTime)

	assert.True(t, errors.Is(s.Pause(ctx, "nope"), ErrNotFound))
}

func Test_UpdateSchedule(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, newStore(t), &fakeExec{}, Options{})
	require.NoError(t, s.Add(ctx, job("alpha", entity.CronSchedule{Minute: "0", Hour: "3", DayOfWeek: "fri"})))

	require.NoError(t, s.UpdateSchedule(ctx, "alpha", entity.CronSchedule{Minute: "30"}))
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "*", v.Schedule["day_of_week"])
	assert.Equal(t, "*", v.Schedule["hour"])
	assert.Equal(t, "30", v.Schedule["minute"])
	assert.Equal(t, time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC), *v.NextRunTime)

	err = s.UpdateSchedule(ctx, "alpha", entity.CronSchedule{Hour: "25"})
	assert.True(t, errors.Is(err, cron.ErrInvalidSchedule))
	v, err = s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "30", v.Schedule["minute"])
}

func Test_UpdateBasic(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s := newTestScheduler(t, store, &fakeExec{}, Options{})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))

	del := true
	require.NoError(t, s.UpdateBasic(ctx, "alpha", &entity.UpdateBasic{RsyncHost: "other.example", RsyncOptions: &entity.OptionsPatch{Delete: &del}}))
	stored, err := store.GetSyncJob(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, entity.OptionSet{Basic: []string{"--exclude=tmp"}, Defaults: []string{"-avz"}, Delete: true}, stored.RsyncOptions)
	assert.Equal(t, "other.example", stored.RsyncHost)
	assert.Equal(t, "mod", stored.RsyncModule)

	empty := []string{}
	require.NoError(t, s.UpdateBasic(ctx, "alpha", &entity.UpdateBasic{RsyncOptions: &entity.OptionsPatch{Defaults: &empty}}))
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"-avz"}, v.RsyncOptions.Defaults)
}

func Test_Dispatch_SkipsMissed(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExec{}
	s := newTestScheduler(t, newStore(t), exec, Options{QueueSize: 10})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))

	s.dispatch(base.Add(2 * time.Minute))
	assert.Len(t, s.queue, 0)

	// three instants missed, one firing
	late := time.Date(2024, 6, 3, 10, 17, 0, 0, time.UTC)
	s.dispatch(late)
	assert.Len(t, s.queue, 1)
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 20, 0, 0, time.UTC), *v.NextRunTime)
	assert.EqualValues(t, 1, v.Running)

	s.dispatch(late)
	assert.Len(t, s.queue, 1)
}

func Test_Dispatch_ConcurrencyCap(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, newStore(t), &fakeExec{}, Options{QueueSize: 10, MaxInstances: 3})
	require.NoError(t, s.Add(ctx, entityEveryMinute("alpha")))

	before := testutil.ToFloat64(jobDroppedCounter.WithLabelValues(reasonConcurrencyCap))
	for i := 1; i <= 4; i++ {
		s.dispatch(base.Add(time.Duration(i) * time.Minute))
	}
	assert.Len(t, s.queue, 3)
	assert.Equal(t, before+1, testutil.ToFloat64(jobDroppedCounter.WithLabelValues(reasonConcurrencyCap)))
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 3, v.Running)
}

func Test_Dispatch_QueueFull(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, newStore(t), &fakeExec{}, Options{QueueSize: 0})
	require.NoError(t, s.Add(ctx, entityEveryMinute("alpha")))

	before := testutil.ToFloat64(jobDroppedCounter.WithLabelValues(reasonQueueFull))
	s.dispatch(base.Add(time.Minute))
	assert.Equal(t, before+1, testutil.ToFloat64(jobDroppedCounter.WithLabelValues(reasonQueueFull)))
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 0, v.Running)
}

func Test_RunNow(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExec{hold: make(chan struct{})}
	s := newTestScheduler(t, newStore(t), exec, Options{MaxInstances: 3})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RunNow(ctx, "alpha"))
	}
	assert.True(t, errors.Is(s.RunNow(ctx, "alpha"), ErrConcurrencyCap))
	assert.True(t, errors.Is(s.RunNow(ctx, "nope"), ErrNotFound))

	close(exec.hold)
	require.Eventually(t, func() bool {
		v, err := s.Get("alpha")
		return err == nil && v.Running == 0 && v.LastRun != nil
	}, 5*time.Second, 10*time.Millisecond)
	v, _ := s.Get("alpha")
	assert.Equal(t, entity.TriggerManual, v.LastRun.Trigger)
	require.NoError(t, s.RunNow(ctx, "alpha"))
}

func Test_RunNow_TriggerFailure(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExec{fail: rsync.ErrUpstreamSyncFailed}
	s := newTestScheduler(t, newStore(t), exec, Options{MaxInstances: 1})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))

	for i := 0; i < 2; i++ {
		assert.True(t, errors.Is(s.RunNow(ctx, "alpha"), rsync.ErrUpstreamSyncFailed))
	}
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.EqualValues(t, 0, v.Running)
}

func Test_RunNow_Closed(t *testing.T) {
	ctx := context.Background()
	s := newTestScheduler(t, newStore(t), &fakeExec{}, Options{})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))
	require.NoError(t, s.Close())
	assert.True(t, errors.Is(s.RunNow(ctx, "alpha"), ErrClosed))
}

func Test_Start(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	first := newTestScheduler(t, store, &fakeExec{}, Options{})
	require.NoError(t, first.Add(ctx, job("beta", every5())))
	require.NoError(t, first.Add(ctx, job("alpha", every5())))
	require.NoError(t, first.Pause(ctx, "beta"))
	require.NoError(t, first.Close())

	broken := job("broken", entity.CronSchedule{Minute: "99"})
	_, err := store.CreateSyncJob(ctx, broken)
	require.NoError(t, err)

	second := newTestScheduler(t, store, &fakeExec{}, Options{})
	require.NoError(t, second.Start(ctx))
	assert.Error(t, second.Start(ctx))
	views := second.List()
	require.Len(t, views, 3)
	assert.Equal(t, "alpha", views[0].Id)
	assert.True(t, views[0].Enabled)
	assert.Equal(t, "beta", views[1].Id)
	assert.False(t, views[1].Enabled)
	assert.Equal(t, "broken", views[2].Id)
	assert.False(t, views[2].Enabled)
	assert.Equal(t, "99", views[2].Schedule["minute"])
}

func Test_Start_AfterAdd(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExec{hold: make(chan struct{})}
	defer close(exec.hold)
	s := newTestScheduler(t, newStore(t), exec, Options{MaxInstances: 1})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))
	require.NoError(t, s.RunNow(ctx, "alpha"))

	require.NoError(t, s.Start(ctx))
	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Running)
	assert.True(t, errors.Is(s.RunNow(ctx, "alpha"), ErrConcurrencyCap))
	assert.Len(t, s.List(), 1)
}

func Test_Close(t *testing.T) {
	ctx := context.Background()
	exec := &fakeExec{hold: make(chan struct{})}
	s := newTestScheduler(t, newStore(t), exec, Options{Workers: 2, QueueSize: 4})
	require.NoError(t, s.Add(ctx, entityEveryMinute("alpha")))
	require.NoError(t, s.Start(ctx))

	s.dispatch(base.Add(time.Minute))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&exec.count) == 1 }, 5*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("close blocked on a running job")
	}
}

// Job alpha every five minutes with slaves S1 and S2 registered: one upstream
// pull at 10:05 followed by one instruction to each slave.
func Test_ScheduledRun(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	var mux sync.Mutex
	got := map[string]*entity.SlaveSyncRequest{}
	slave := func(name string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &entity.SlaveSyncRequest{}
			if err := json.NewDecoder(r.Body).Decode(req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			mux.Lock()
			got[name] = req
			mux.Unlock()
		}))
	}
	s1, s2 := slave("S1"), slave("S2")
	defer s1.Close()
	defer s2.Close()
	for _, srv := range []*httptest.Server{s1, s2} {
		u, err := url.Parse(srv.URL)
		require.NoError(t, err)
		port, err := strconv.Atoi(u.Port())
		require.NoError(t, err)
		_, err = store.CreateSlaveNode(ctx, &entity.SlaveNode{Hostname: u.Hostname(), Port: port, CreateTime: base.Unix()})
		require.NoError(t, err)
	}

	syncer := &countingSyncer{}
	mq, err := infrastructure.NewEventMq("")
	require.NoError(t, err)
	orc := orchestrator.NewOrchestrator(orchestrator.Options{MasterHostname: "master.example", MasterPassword: "pw"},
		syncer, store, client.NewSlaveClient(2*time.Second, "/sync_from_master/"), store, mq)

	s := newTestScheduler(t, store, orc, Options{Workers: 2, QueueSize: 4})
	require.NoError(t, s.Add(ctx, job("alpha", every5())))
	require.NoError(t, s.Start(ctx))

	s.dispatch(time.Date(2024, 6, 3, 10, 5, 0, 0, time.UTC))
	require.Eventually(t, func() bool {
		v, err := s.Get("alpha")
		return err == nil && v.LastRun != nil
	}, 5*time.Second, 10*time.Millisecond)

	v, err := s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSuccess, v.LastRun.Outcome)
	assert.Len(t, v.LastRun.Slaves, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&syncer.calls))

	mux.Lock()
	defer mux.Unlock()
	require.Len(t, got, 2)
	for _, req := range got {
		assert.Equal(t, "alpha", req.Project)
		assert.Equal(t, "master.example", req.RsyncHost)
		assert.Equal(t, v.LastRun.RunId, req.RunId)
	}

	runs, err := store.ListJobRuns(ctx, "alpha", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, entity.OutcomeSuccess, runs[0].Outcome)
}

type countingSyncer struct {
	calls int32
}

func (c *countingSyncer) Start(ctx context.Context, req rsync.Request) (*rsync.Task, error) {
	atomic.AddInt32(&c.calls, 1)
	return rsync.NewTask(func() error { return nil }), nil
}

func entityEveryMinute(id string) *entity.SyncJob {
	return job(id, entity.CronSchedule{})
}
