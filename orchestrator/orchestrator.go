package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hhzhhzhhz/mirror-master/client"
	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/infrastructure"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
	"github.com/hhzhhzhhz/mirror-master/rsync"
)

const recordTimeout = 5 * time.Second

// Registry read-only view of the registered slaves.
type Registry interface {
	ListSlaveNodes(ctx context.Context) ([]*entity.SlaveNode, error)
}

type RunStore interface {
	CreateJobRun(ctx context.Context, run *entity.JobRunRecord) (int64, error)
}

type Options struct {
	// MasterHostname rsync host the slaves pull from.
	MasterHostname string
	MasterPassword string
	RunEventTopic  string
}

// Orchestrator pulls a project from upstream then instructs every slave to pull it from the master.
type Orchestrator struct {
	opts     Options
	syncer   rsync.Syncer
	registry Registry
	slaves   client.SlaveClient
	runs     RunStore
	mq       infrastructure.EventMq
	now      func() time.Time
}

func NewOrchestrator(opts Options, syncer rsync.Syncer, registry Registry, slaves client.SlaveClient, runs RunStore, mq infrastructure.EventMq) *Orchestrator {
	return &Orchestrator{
		opts:     opts,
		syncer:   syncer,
		registry: registry,
		slaves:   slaves,
		runs:     runs,
		mq:       mq,
		now:      time.Now,
	}
}

// Execute runs the whole job and blocks until the fan-out is acknowledged.
func (o *Orchestrator) Execute(ctx context.Context, job *entity.SyncJob) *entity.JobRunRecord {
	rec := o.newRecord(job, entity.TriggerSchedule)
	task, err := o.syncer.Start(ctx, upstreamRequest(job))
	if err != nil {
		return o.finish(rec, err)
	}
	return o.complete(ctx, rec, job, task)
}

// Trigger starts the upstream pull and finishes the run in the background.
func (o *Orchestrator) Trigger(ctx context.Context, job *entity.SyncJob, done func(*entity.JobRunRecord)) error {
	rec := o.newRecord(job, entity.TriggerManual)
	task, err := o.syncer.Start(ctx, upstreamRequest(job))
	if err != nil {
		o.finish(rec, err)
		return err
	}
	log.Logger().Info("Orchestrator.Trigger job_id=%s run_id=%s sync initiated", job.Id, rec.RunId)
	go func() {
		var out *entity.JobRunRecord
		defer func() { done(out) }()
		defer utils.Recover("Orchestrator.Trigger job_id=" + job.Id)
		out = o.complete(ctx, rec, job, task)
	}()
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, rec *entity.JobRunRecord, job *entity.SyncJob, task *rsync.Task) *entity.JobRunRecord {
	if err := task.Wait(); err != nil {
		return o.finish(rec, err)
	}
	log.Logger().Info("Orchestrator upstream synced job_id=%s run_id=%s source=%s", job.Id, rec.RunId, job.Source())
	nodes, err := o.registry.ListSlaveNodes(ctx)
	if err != nil {
		rec.Outcome = entity.OutcomePartial
		return o.finish(rec, fmt.Errorf("read slave registry failed cause=%s", err.Error()))
	}
	rec.Slaves = o.fanOut(ctx, rec, job, nodes)
	rec.Outcome = entity.OutcomeSuccess
	var failed []string
	for _, s := range rec.Slaves {
		if !s.Acked {
			failed = append(failed, s.Hostname)
		}
	}
	if len(failed) > 0 {
		rec.Outcome = entity.OutcomePartial
		return o.finish(rec, fmt.Errorf("slaves not acknowledged: %s", strings.Join(failed, ",")))
	}
	return o.finish(rec, nil)
}

// fanOut instructs all slaves concurrently; each call is bounded by the client timeout.
func (o *Orchestrator) fanOut(ctx context.Context, rec *entity.JobRunRecord, job *entity.SyncJob, nodes []*entity.SlaveNode) []*entity.SlaveOutcome {
	outcomes := make([]*entity.SlaveOutcome, len(nodes))
	var sw utils.WaitGroupWrapper
	for i, node := range nodes {
		i, node := i, node
		sw.Wrap(func() {
			req := &entity.SlaveSyncRequest{
				Project:       job.Project,
				RsyncHost:     o.opts.MasterHostname,
				RsyncPassword: o.opts.MasterPassword,
				RsyncOptions:  job.RsyncOptions,
				SlaveId:       node.Id,
				JobId:         job.Id,
				RunId:         rec.RunId,
			}
			out := &entity.SlaveOutcome{SlaveId: node.Id, Hostname: node.Hostname, Acked: true}
			if err := o.slaves.SyncFromMaster(ctx, node, req); err != nil {
				out.Acked = false
				out.Cause = err.Error()
				slaveCallCounter.WithLabelValues("failed").Inc()
				log.Logger().Warn("Orchestrator.fanOut job_id=%s run_id=%s slave=%s cause=%s", job.Id, rec.RunId, node.Hostname, err.Error())
			} else {
				slaveCallCounter.WithLabelValues("acked").Inc()
			}
			outcomes[i] = out
		})
	}
	sw.Wait()
	return outcomes
}

func (o *Orchestrator) newRecord(job *entity.SyncJob, trigger entity.Trigger) *entity.JobRunRecord {
	return &entity.JobRunRecord{
		RunId:     utils.UUID(),
		JobId:     job.Id,
		Project:   job.Project,
		Trigger:   trigger,
		StartTime: o.now().Unix(),
		Outcome:   entity.OutcomeRunning,
		Slaves:    []*entity.SlaveOutcome{},
	}
}

// finish stamps the record, then stores and publishes it best-effort.
// An error without a preset outcome marks the run failed.
func (o *Orchestrator) finish(rec *entity.JobRunRecord, err error) *entity.JobRunRecord {
	end := o.now()
	rec.EndTime = end.Unix()
	if err != nil {
		rec.Cause = err.Error()
		if rec.Outcome == entity.OutcomeRunning {
			rec.Outcome = entity.OutcomeFailed
		}
	}
	runCounter.WithLabelValues(string(rec.Trigger), string(rec.Outcome)).Inc()
	runDuration.WithLabelValues(string(rec.Outcome)).Observe(end.Sub(time.Unix(rec.StartTime, 0)).Seconds())
	if rec.Outcome == entity.OutcomeFailed {
		log.Logger().Error("Orchestrator run job_id=%s run_id=%s outcome=%s cause=%s", rec.JobId, rec.RunId, rec.Outcome, rec.Cause)
	} else {
		log.Logger().Info("Orchestrator run job_id=%s run_id=%s outcome=%s slaves=%d cause=%s", rec.JobId, rec.RunId, rec.Outcome, len(rec.Slaves), rec.Cause)
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if _, err := o.runs.CreateJobRun(ctx, rec); err != nil {
		log.Logger().Warn("Orchestrator.finish save run_id=%s failed cause=%s", rec.RunId, err.Error())
	}
	if o.opts.RunEventTopic != "" {
		o.mq.RetryPublish(o.opts.RunEventTopic, &entity.RunEvent{Type: entity.RunFinished, Run: rec, Time: rec.EndTime})
	}
	return rec
}

func upstreamRequest(job *entity.SyncJob) rsync.Request {
	return rsync.Request{
		Source:   job.Source(),
		Dest:     job.Destination(),
		Password: job.RsyncPassword,
		Options:  job.RsyncOptions,
	}
}

