package api

import (
	"net/http"
	"strconv"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/pkg/errors"
	"github.com/hhzhhzhhz/mirror-master/pkg/protocol"
	"github.com/hhzhhzhhz/mirror-master/pkg/verify"
	"github.com/julienschmidt/httprouter"
)

func (a *Api) AddProject(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "add_project"
	req := &entity.AddProject{}
	if !decode(w, r, method, req) {
		return
	}
	job, err := verify.BuildSyncJob(req, a.opts.Defaults)
	if err != nil {
		protocol.FailedJson(w, method, errors.VerifyJobError, err.Error())
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.sched.Add(ctx, job); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessJson(w, method, map[string]string{"id": job.Id, "project": job.Project})
}

func (a *Api) ListProjects(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	protocol.SuccessJson(w, "list_projects", a.sched.List())
}

func (a *Api) RemoveProject(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "remove_project"
	req := &entity.IdRequest{}
	if !decode(w, r, method, req) {
		return
	}
	if req.Id == "" {
		protocol.FailedJson(w, method, errors.JobIdError, "")
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.sched.Remove(ctx, req.Id); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessJson(w, method, map[string]string{"id": req.Id})
}

func (a *Api) DisableProject(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "disable_project"
	id, ok := idOf(w, r, method)
	if !ok {
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.sched.Pause(ctx, id); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessJson(w, method, map[string]string{"id": id})
}

func (a *Api) EnableProject(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "enable_project"
	id, ok := idOf(w, r, method)
	if !ok {
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.sched.Resume(ctx, id); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessJson(w, method, map[string]string{"id": id})
}

func (a *Api) UpdateBasic(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "update_project"
	req := &entity.UpdateBasic{}
	if !decode(w, r, method, req) {
		return
	}
	if err := verify.VerifyUpdateBasic(req); err != nil {
		protocol.FailedJson(w, method, errors.VerifyJobError, err.Error())
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.sched.UpdateBasic(ctx, req.Id, req); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessJson(w, method, map[string]string{"id": req.Id})
}

func (a *Api) UpdateSchedule(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "update_project_schedule"
	req := &entity.UpdateSchedule{}
	if !decode(w, r, method, req) {
		return
	}
	cs, err := verify.ScheduleOf(req)
	if err != nil {
		protocol.FailedJson(w, method, errors.VerifyJobError, err.Error())
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()
	if err := a.sched.UpdateSchedule(ctx, req.Id, cs); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessJson(w, method, map[string]string{"id": req.Id})
}

func (a *Api) Syncup(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "syncup_project"
	id, ok := idOf(w, r, method)
	if !ok {
		return
	}
	if err := a.sched.RunNow(r.Context(), id); err != nil {
		failed(w, method, err)
		return
	}
	protocol.SuccessJson(w, method, map[string]string{"project_id": id, "note": "sync initiated"})
}

// JobRuns recent run records of a job, newest first. ?limit= caps the count.
func (a *Api) JobRuns(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	const method = "job_runs"
	id, ok := idOf(w, r, method)
	if !ok {
		return
	}
	if !a.sched.Has(id) {
		protocol.FailedJson(w, method, errors.JobNotFoundError, "")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ctx, cancel := a.ctx(r)
	defer cancel()
	runs, err := a.store.ListJobRuns(ctx, id, limit)
	if err != nil {
		protocol.FailedJson(w, method, errors.SqlQueryError, err.Error())
		return
	}
	protocol.SuccessJson(w, method, runs)
}
