package storage

import (
	"context"
	"fmt"

	"github.com/hhzhhzhhz/mirror-master/entity"
	json "github.com/json-iterator/go"
	"github.com/jmoiron/sqlx"
)

func NewSyncJob(xdb *sqlx.DB) SyncJob {
	return &syncJob{db: xdb}
}

type syncJob struct {
	db *sqlx.DB
}

func (s *syncJob) CreateSyncJob(ctx context.Context, job *entity.SyncJob) (int64, error) {
	row, err := toSyncJobRow(job)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "insert into sync_job(id, project, rsync_host, rsync_module, dest, rsync_password, rsync_options, cron_options, paused, create_time, update_time) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		row.Id,
		row.Project,
		row.RsyncHost,
		row.RsyncModule,
		row.Dest,
		row.RsyncPassword,
		row.RsyncOptions,
		row.CronOptions,
		row.Paused,
		row.CreateTime,
		row.UpdateTime,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *syncJob) UpdateSyncJob(ctx context.Context, job *entity.SyncJob) (int64, error) {
	row, err := toSyncJobRow(job)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "update sync_job set project = ?, rsync_host = ?, rsync_module = ?, dest = ?, rsync_password = ?, rsync_options = ?, cron_options = ?, paused = ?, update_time = ? where id = ?",
		row.Project, row.RsyncHost, row.RsyncModule, row.Dest, row.RsyncPassword, row.RsyncOptions, row.CronOptions, row.Paused, row.UpdateTime, row.Id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *syncJob) DeleteSyncJob(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "delete from sync_job where id = ?", id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *syncJob) GetSyncJob(ctx context.Context, id string) (*entity.SyncJob, error) {
	row := &entity.SyncJobRow{}
	if err := s.db.GetContext(ctx, row, "select * from sync_job where id = ?", id); err != nil {
		return nil, err
	}
	return fromSyncJobRow(row)
}

func (s *syncJob) ListSyncJobs(ctx context.Context) ([]*entity.SyncJob, error) {
	var rows []*entity.SyncJobRow
	if err := s.db.SelectContext(ctx, &rows, "select * from sync_job order by id asc"); err != nil {
		return nil, err
	}
	jobs := make([]*entity.SyncJob, 0, len(rows))
	for _, row := range rows {
		job, err := fromSyncJobRow(row)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func toSyncJobRow(job *entity.SyncJob) (*entity.SyncJobRow, error) {
	opts, err := json.MarshalToString(job.RsyncOptions)
	if err != nil {
		return nil, fmt.Errorf("marshal rsync_options id=%s cause=%s", job.Id, err.Error())
	}
	cron, err := json.MarshalToString(job.CronOptions)
	if err != nil {
		return nil, fmt.Errorf("marshal cron_options id=%s cause=%s", job.Id, err.Error())
	}
	paused := 0
	if job.Paused {
		paused = 1
	}
	return &entity.SyncJobRow{
		Id:            job.Id,
		Project:       job.Project,
		RsyncHost:     job.RsyncHost,
		RsyncModule:   job.RsyncModule,
		Dest:          job.Dest,
		RsyncPassword: job.RsyncPassword,
		RsyncOptions:  opts,
		CronOptions:   cron,
		Paused:        paused,
		CreateTime:    job.CreateTime,
		UpdateTime:    job.UpdateTime,
	}, nil
}

func fromSyncJobRow(row *entity.SyncJobRow) (*entity.SyncJob, error) {
	job := &entity.SyncJob{
		Id:            row.Id,
		Project:       row.Project,
		RsyncHost:     row.RsyncHost,
		RsyncModule:   row.RsyncModule,
		Dest:          row.Dest,
		RsyncPassword: row.RsyncPassword,
		Paused:        row.Paused != 0,
		CreateTime:    row.CreateTime,
		UpdateTime:    row.UpdateTime,
	}
	if err := json.UnmarshalFromString(row.RsyncOptions, &job.RsyncOptions); err != nil {
		return nil, fmt.Errorf("unmarshal rsync_options id=%s cause=%s", row.Id, err.Error())
	}
	if err := json.UnmarshalFromString(row.CronOptions, &job.CronOptions); err != nil {
		return nil, fmt.Errorf("unmarshal cron_options id=%s cause=%s", row.Id, err.Error())
	}
	return job, nil
}
