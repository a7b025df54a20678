package storage

import (
	"context"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/jmoiron/sqlx"
)

func NewFactory(xdb *sqlx.DB) Factory {
	return &factory{
		NewSyncJob(xdb),
		NewSlaveNode(xdb),
		NewJobRun(xdb),
		NewSlaveSyncLog(xdb),
	}
}

type Factory interface {
	SyncJob
	SlaveNode
	JobRun
	SlaveSyncLog
}

type factory struct {
	SyncJob
	SlaveNode
	JobRun
	SlaveSyncLog
}

type SyncJob interface {
	CreateSyncJob(ctx context.Context, job *entity.SyncJob) (int64, error)
	UpdateSyncJob(ctx context.Context, job *entity.SyncJob) (int64, error)
	DeleteSyncJob(ctx context.Context, id string) (int64, error)
	GetSyncJob(ctx context.Context, id string) (*entity.SyncJob, error)
	ListSyncJobs(ctx context.Context) ([]*entity.SyncJob, error)
}

// SlaveNode doubles as the slave registry.
type SlaveNode interface {
	CreateSlaveNode(ctx context.Context, node *entity.SlaveNode) (int64, error)
	ExistSlaveNode(ctx context.Context, hostname string, port int) (int64, error)
	GetSlaveNode(ctx context.Context, id int64) (*entity.SlaveNode, error)
	ListSlaveNodes(ctx context.Context) ([]*entity.SlaveNode, error)
	DeleteSlaveNode(ctx context.Context, id int64) (int64, error)
}

type JobRun interface {
	CreateJobRun(ctx context.Context, run *entity.JobRunRecord) (int64, error)
	ListJobRuns(ctx context.Context, jobId string, limit int) ([]*entity.JobRunRecord, error)
}

type SlaveSyncLog interface {
	CreateSlaveSyncLog(ctx context.Context, l *entity.SlaveSyncLog) (int64, error)
	ListSlaveSyncLogs(ctx context.Context, project string, limit int) ([]*entity.SlaveSyncLog, error)
}
