package server

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/log"
	"github.com/hhzhhzhhz/mirror-master/pkg/utils"
	"github.com/hhzhhzhhz/mirror-master/pkg/verify"
	"github.com/hhzhhzhhz/mirror-master/rsync"
	"github.com/hhzhhzhhz/mirror-master/scheduler"
)

// seedJobs adds the add_project bodies listed in a YAML file. Ids already known are skipped.
func seedJobs(ctx context.Context, sched *scheduler.Scheduler, path string, d rsync.Defaults) (int, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read jobs_file=%s failed cause=%s", path, err.Error())
	}
	var reqs []*entity.AddProject
	if err := utils.UnmarshalYaml(b, &reqs); err != nil {
		return 0, fmt.Errorf("decode jobs_file=%s failed cause=%s", path, err.Error())
	}
	added := 0
	for i, req := range reqs {
		job, err := verify.BuildSyncJob(req, d)
		if err != nil {
			log.Logger().Warn("seedJobs item=%d skipped cause=%s", i, err.Error())
			continue
		}
		if sched.Has(job.Id) {
			continue
		}
		if err := sched.Add(ctx, job); err != nil {
			if errors.Is(err, scheduler.ErrDuplicateJob) {
				continue
			}
			log.Logger().Warn("seedJobs job_id=%s skipped cause=%s", job.Id, err.Error())
			continue
		}
		added++
	}
	return added, nil
}
