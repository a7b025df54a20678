package orchestrator

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
	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/infrastructure"
	"github.com/hhzhhzhhz/mirror-master/rsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	startErr error
	waitErr  error
	calls    int32
	last     rsync.Request
}

func (f *fakeSyncer) Start(ctx context.Context, req rsync.Request) (*rsync.Task, error) {
	atomic.AddInt32(&f.calls, 1)
	f.last = req
	if f.startErr != nil {
		return nil, f.startErr
	}
	return rsync.NewTask(func() error { return f.waitErr }), nil
}

type fakeRegistry struct {
	nodes []*entity.SlaveNode
	err   error
}

func (f *fakeRegistry) ListSlaveNodes(ctx context.Context) ([]*entity.SlaveNode, error) {
	return f.nodes, f.err
}

type memRuns struct {
	mux  sync.Mutex
	runs []*entity.JobRunRecord
}

func (m *memRuns) CreateJobRun(ctx context.Context, run *entity.JobRunRecord) (int64, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

type countingSlaves struct {
	calls int32
	fail  map[string]bool
	reqs  sync.Map
}

func (c *countingSlaves) SyncFromMaster(ctx context.Context, node *entity.SlaveNode, req *entity.SlaveSyncRequest) error {
	atomic.AddInt32(&c.calls, 1)
	c.reqs.Store(node.Hostname, req)
	if c.fail[node.Hostname] {
		return client.ErrSlaveUnreachable
	}
	return nil
}

func testJob() *entity.SyncJob {
	return &entity.SyncJob{
		Id:            "alpha",
		Project:       "alpha",
		RsyncHost:     "up.example",
		RsyncModule:   "mod",
		Dest:          "/data",
		RsyncPassword: "upstream-secret",
		RsyncOptions:  entity.OptionSet{Basic: []string{"-a"}, Defaults: []string{"-z"}},
	}
}

func newTestOrchestrator(t *testing.T, s rsync.Syncer, reg Registry, sc client.SlaveClient, runs RunStore) *Orchestrator {
	mq, err := infrastructure.NewEventMq("")
	require.NoError(t, err)
	return NewOrchestrator(Options{MasterHostname: "master.example", MasterPassword: "rsyncd-secret", RunEventTopic: "run"}, s, reg, sc, runs, mq)
}

func Test_Execute(t *testing.T) {
	syncer := &fakeSyncer{}
	reg := &fakeRegistry{nodes: []*entity.SlaveNode{{Id: 1, Hostname: "s1", Port: 80}, {Id: 2, Hostname: "s2", Port: 80}}}
	slaves := &countingSlaves{}
	runs := &memRuns{}
	o := newTestOrchestrator(t, syncer, reg, slaves, runs)

	rec := o.Execute(context.Background(), testJob())
	assert.Equal(t, entity.OutcomeSuccess, rec.Outcome)
	assert.Equal(t, entity.TriggerSchedule, rec.Trigger)
	assert.NotEmpty(t, rec.RunId)
	assert.Len(t, rec.Slaves, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&slaves.calls))

	assert.Equal(t, "alpha@up.example::mod", syncer.last.Source)
	assert.Equal(t, "/data/alpha", syncer.last.Dest)
	assert.Equal(t, "upstream-secret", syncer.last.Password)

	v, ok := slaves.reqs.Load("s1")
	require.True(t, ok)
	req := v.(*entity.SlaveSyncRequest)
	assert.Equal(t, "master.example", req.RsyncHost)
	assert.Equal(t, "rsyncd-secret", req.RsyncPassword)
	assert.Equal(t, rec.RunId, req.RunId)
	assert.Equal(t, int64(1), req.SlaveId)

	require.Len(t, runs.runs, 1)
	assert.Equal(t, rec.RunId, runs.runs[0].RunId)
}

func Test_Execute_UpstreamFailure(t *testing.T) {
	syncer := &fakeSyncer{waitErr: rsync.ErrUpstreamSyncFailed}
	slaves := &countingSlaves{}
	runs := &memRuns{}
	o := newTestOrchestrator(t, syncer, &fakeRegistry{nodes: []*entity.SlaveNode{{Id: 1, Hostname: "s1"}}}, slaves, runs)

	rec := o.Execute(context.Background(), testJob())
	assert.Equal(t, entity.OutcomeFailed, rec.Outcome)
	assert.Contains(t, rec.Cause, "upstream sync failed")
	assert.EqualValues(t, 0, atomic.LoadInt32(&slaves.calls))
	require.Len(t, runs.runs, 1)
}

func Test_Execute_Partial(t *testing.T) {
	slaves := &countingSlaves{fail: map[string]bool{"s2": true}}
	reg := &fakeRegistry{nodes: []*entity.SlaveNode{{Id: 1, Hostname: "s1"}, {Id: 2, Hostname: "s2"}, {Id: 3, Hostname: "s3"}}}
	o := newTestOrchestrator(t, &fakeSyncer{}, reg, slaves, &memRuns{})

	rec := o.Execute(context.Background(), testJob())
	assert.Equal(t, entity.OutcomePartial, rec.Outcome)
	assert.Contains(t, rec.Cause, "s2")
	acked := 0
	for _, s := range rec.Slaves {
		if s.Acked {
			acked++
		}
	}
	assert.Equal(t, 2, acked)
}

func Test_Execute_RegistryFailure(t *testing.T) {
	slaves := &countingSlaves{}
	o := newTestOrchestrator(t, &fakeSyncer{}, &fakeRegistry{err: errors.New("db down")}, slaves, &memRuns{})

	rec := o.Execute(context.Background(), testJob())
	assert.Equal(t, entity.OutcomePartial, rec.Outcome)
	assert.Contains(t, rec.Cause, "db down")
	assert.EqualValues(t, 0, atomic.LoadInt32(&slaves.calls))
}

func Test_Execute_NoSlaves(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSyncer{}, &fakeRegistry{}, &countingSlaves{}, &memRuns{})
	rec := o.Execute(context.Background(), testJob())
	assert.Equal(t, entity.OutcomeSuccess, rec.Outcome)
	assert.Empty(t, rec.Slaves)
}

func Test_Trigger_StartFailure(t *testing.T) {
	runs := &memRuns{}
	o := newTestOrchestrator(t, &fakeSyncer{startErr: rsync.ErrUpstreamSyncFailed}, &fakeRegistry{}, &countingSlaves{}, runs)
	called := false
	err := o.Trigger(context.Background(), testJob(), func(*entity.JobRunRecord) { called = true })
	assert.ErrorIs(t, err, rsync.ErrUpstreamSyncFailed)
	assert.False(t, called)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, entity.TriggerManual, runs.runs[0].Trigger)
	assert.Equal(t, entity.OutcomeFailed, runs.runs[0].Outcome)
}

func Test_Trigger(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSyncer{}, &fakeRegistry{nodes: []*entity.SlaveNode{{Id: 1, Hostname: "s1"}}}, &countingSlaves{}, &memRuns{})
	done := make(chan *entity.JobRunRecord, 1)
	require.NoError(t, o.Trigger(context.Background(), testJob(), func(r *entity.JobRunRecord) { done <- r }))
	select {
	case rec := <-done:
		assert.Equal(t, entity.OutcomeSuccess, rec.Outcome)
		assert.Equal(t, entity.TriggerManual, rec.Trigger)
	case <-time.After(5 * time.Second):
		t.Fatal("trigger never completed")
	}
}

// One slave hangs past the client timeout; the others still acknowledge.
func Test_FanOut_SlowSlave(t *testing.T) {
	var hits int32
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer fast.Close()
	block := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(block)

	reg := &fakeRegistry{nodes: []*entity.SlaveNode{nodeOf(t, 1, fast.URL), nodeOf(t, 2, slow.URL), nodeOf(t, 3, fast.URL)}}
	sc := client.NewSlaveClient(200*time.Millisecond, "/sync_from_master/")
	o := newTestOrchestrator(t, &fakeSyncer{}, reg, sc, &memRuns{})

	start := time.Now()
	rec := o.Execute(context.Background(), testJob())
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, entity.OutcomePartial, rec.Outcome)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	assert.False(t, rec.Slaves[1].Acked)
	assert.True(t, rec.Slaves[0].Acked)
	assert.True(t, rec.Slaves[2].Acked)
}

func nodeOf(t *testing.T, id int64, raw string) *entity.SlaveNode {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return &entity.SlaveNode{Id: id, Hostname: u.Hostname(), Port: port}
}
