package storage

import (
	"context"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/jmoiron/sqlx"
)

func NewSlaveSyncLog(xdb *sqlx.DB) SlaveSyncLog {
	return &slaveSyncLog{db: xdb}
}

type slaveSyncLog struct {
	db *sqlx.DB
}

func (s *slaveSyncLog) CreateSlaveSyncLog(ctx context.Context, l *entity.SlaveSyncLog) (int64, error) {
	res, err := s.db.ExecContext(ctx, "insert into slave_sync_log(slave_id, hostname, project, job_id, run_id, create_time) values (?, ?, ?, ?, ?, ?)",
		l.SlaveId, l.Hostname, l.Project, l.JobId, l.RunId, l.CreateTime)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *slaveSyncLog) ListSlaveSyncLogs(ctx context.Context, project string, limit int) ([]*entity.SlaveSyncLog, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	var res []*entity.SlaveSyncLog
	if err := s.db.SelectContext(ctx, &res, "select * from slave_sync_log where project = ? order by id desc limit ?", project, limit); err != nil {
		return nil, err
	}
	return res, nil
}
