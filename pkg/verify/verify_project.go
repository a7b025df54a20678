package verify

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/hhzhhzhhz/mirror-master/entity"
	"github.com/hhzhhzhhz/mirror-master/rsync"
)

var (
	// projectRule the project name doubles as the rsync user and the directory under dest.
	projectRule = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	hostRule    = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.:-]*[A-Za-z0-9])?$`)
)

const maxPort = 65535

// VerifyAddProject verify the data
func VerifyAddProject(req *entity.AddProject) error {
	switch {
	case req.Project == "":
		return fmt.Errorf("project is empty")
	case req.RsyncHost == "":
		return fmt.Errorf("rsync_host is empty")
	case req.RsyncModule == "":
		return fmt.Errorf("rsync_module is empty")
	case req.Dest == "":
		return fmt.Errorf("dest is empty")
	case req.CronOptions == nil:
		return fmt.Errorf("cron_options is empty")
	}
	return other(req.Id, req.Project, req.RsyncHost, req.Dest)
}

// BuildSyncJob verifies req and resolves absent options against d.
// The id falls back to the project name.
func BuildSyncJob(req *entity.AddProject, d rsync.Defaults) (*entity.SyncJob, error) {
	if err := VerifyAddProject(req); err != nil {
		return nil, err
	}
	id := req.Id
	if id == "" {
		id = req.Project
	}
	return &entity.SyncJob{
		Id:            id,
		Project:       req.Project,
		RsyncHost:     req.RsyncHost,
		RsyncModule:   req.RsyncModule,
		Dest:          req.Dest,
		RsyncPassword: req.RsyncPassword,
		RsyncOptions:  rsync.Resolve(req.RsyncOptions, d),
		CronOptions:   *req.CronOptions,
	}, nil
}

// VerifyUpdateBasic empty fields are kept, set ones follow the add rules.
func VerifyUpdateBasic(req *entity.UpdateBasic) error {
	if req.Id == "" {
		return fmt.Errorf("id is empty")
	}
	return other("", req.Project, req.RsyncHost, req.Dest)
}

// ScheduleOf returns the replacement schedule, read from cron_options or the top level.
func ScheduleOf(req *entity.UpdateSchedule) (entity.CronSchedule, error) {
	if req.Id == "" {
		return entity.CronSchedule{}, fmt.Errorf("id is empty")
	}
	cs := req.CronSchedule
	if req.CronOptions != nil {
		cs = *req.CronOptions
	}
	if cs.IsZero() {
		return entity.CronSchedule{}, fmt.Errorf("schedule is empty, supply every field to keep")
	}
	return cs, nil
}

func VerifyAddSlave(req *entity.AddSlave) error {
	switch {
	case req.Hostname == "":
		return fmt.Errorf("hostname is empty")
	case !hostRule.MatchString(req.Hostname):
		return fmt.Errorf("invalid hostname %s", req.Hostname)
	case req.Port <= 0 || req.Port > maxPort:
		return fmt.Errorf("invalid port %d", req.Port)
	}
	return nil
}

func VerifyRemoveSlave(req *entity.RemoveSlave) error {
	if req.Id <= 0 && req.Hostname == "" {
		return fmt.Errorf("id or hostname is required")
	}
	return nil
}

func VerifySlaveComplete(req *entity.SlaveComplete) error {
	switch {
	case req.SlaveId <= 0:
		return fmt.Errorf("slave_id is empty")
	case req.Project == "":
		return fmt.Errorf("project is empty")
	}
	return nil
}

func other(id, project, host, dest string) error {
	if id != "" && strings.ContainsAny(id, " \t\r\n/") {
		return fmt.Errorf("invalid id %q, no whitespace or slash allowed", id)
	}
	if project != "" && !projectRule.MatchString(project) {
		return fmt.Errorf("invalid project %s e.g. 'fedora' or 'ubuntu-releases', regex used for validation is '%s'", project, projectRule.String())
	}
	if host != "" && !hostRule.MatchString(host) {
		return fmt.Errorf("invalid rsync_host %s", host)
	}
	if dest != "" && (!path.IsAbs(dest) || strings.Contains(dest, "..")) {
		return fmt.Errorf("dest %s must be an absolute path without '..'", dest)
	}
	return nil
}
