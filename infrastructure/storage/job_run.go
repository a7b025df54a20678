package storage

import (
	"context"
	"fmt"

	"github.com/hhzhhzhhz/mirror-master/entity"
	json "github.com/json-iterator/go"
	"github.com/jmoiron/sqlx"
)

const defaultRunsLimit = 20

func NewJobRun(xdb *sqlx.DB) JobRun {
	return &jobRun{db: xdb}
}

type jobRun struct {
	db *sqlx.DB
}

func (j *jobRun) CreateJobRun(ctx context.Context, run *entity.JobRunRecord) (int64, error) {
	slaves, err := json.MarshalToString(run.Slaves)
	if err != nil {
		return 0, fmt.Errorf("marshal slaves run_id=%s cause=%s", run.RunId, err.Error())
	}
	res, err := j.db.ExecContext(ctx, "insert into job_run(run_id, job_id, project, trigger_by, start_time, end_time, outcome, cause, slaves) values (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.RunId,
		run.JobId,
		run.Project,
		string(run.Trigger),
		run.StartTime,
		run.EndTime,
		string(run.Outcome),
		run.Cause,
		slaves,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListJobRuns newest first.
func (j *jobRun) ListJobRuns(ctx context.Context, jobId string, limit int) ([]*entity.JobRunRecord, error) {
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	var rows []*entity.JobRunRow
	if err := j.db.SelectContext(ctx, &rows, "select * from job_run where job_id = ? order by id desc limit ?", jobId, limit); err != nil {
		return nil, err
	}
	runs := make([]*entity.JobRunRecord, 0, len(rows))
	for _, row := range rows {
		run := &entity.JobRunRecord{
			RunId:     row.RunId,
			JobId:     row.JobId,
			Project:   row.Project,
			Trigger:   entity.Trigger(row.Trigger),
			StartTime: row.StartTime,
			EndTime:   row.EndTime,
			Outcome:   entity.Outcome(row.Outcome),
			Cause:     row.Cause,
		}
		if err := json.UnmarshalFromString(row.Slaves, &run.Slaves); err != nil {
			return nil, fmt.Errorf("unmarshal slaves run_id=%s cause=%s", row.RunId, err.Error())
		}
		runs = append(runs, run)
	}
	return runs, nil
}
