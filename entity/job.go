package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/json-iterator/go"
)

// Field one cron_options value. Accepts JSON strings and numbers.
type Field string

func (f *Field) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = Field(strings.TrimSpace(v))
	default:
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("cron field %s is neither string nor number", s)
		}
		*f = Field(s)
	}
	return nil
}

func (f Field) String() string {
	return string(f)
}

// CronSchedule empty fields are wildcards.
type CronSchedule struct {
	StartDate Field `json:"start_date,omitempty"`
	Minute    Field `json:"minute,omitempty"`
	Hour      Field `json:"hour,omitempty"`
	Day       Field `json:"day,omitempty"`
	Month     Field `json:"month,omitempty"`
	DayOfWeek Field `json:"day_of_week,omitempty"`
}

// IsZero reports whether no field is set.
func (c CronSchedule) IsZero() bool {
	return c == CronSchedule{}
}

// OptionSet rsync flags of a job, always fully resolved once stored.
type OptionSet struct {
	Basic    []string `json:"basic"`
	Defaults []string `json:"defaults"`
	Delete   bool     `json:"delete"`
}

// OptionsPatch nil fields are left untouched by a merge.
type OptionsPatch struct {
	Basic    *[]string `json:"basic,omitempty"`
	Defaults *[]string `json:"defaults,omitempty"`
	Delete   *bool     `json:"delete,omitempty"`
}

// SyncJob a project mirrored from upstream on a schedule.
type SyncJob struct {
	Id            string       `json:"id"`
	Project       string       `json:"project"`
	RsyncHost     string       `json:"rsync_host"`
	RsyncModule   string       `json:"rsync_module"`
	Dest          string       `json:"dest"`
	RsyncPassword string       `json:"-"`
	RsyncOptions  OptionSet    `json:"rsync_options"`
	CronOptions   CronSchedule `json:"cron_options"`
	Paused        bool         `json:"paused"`
	CreateTime    int64        `json:"create_time"`
	UpdateTime    int64        `json:"update_time"`
}

// Source rsync source of the upstream pull.
func (j *SyncJob) Source() string {
	return fmt.Sprintf("%s@%s::%s", j.Project, j.RsyncHost, j.RsyncModule)
}

// Destination local path the upstream pull writes to.
func (j *SyncJob) Destination() string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(j.Dest, "/"), j.Project)
}

// Clone deep copy, safe to hand out of a lock.
func (j *SyncJob) Clone() *SyncJob {
	c := *j
	c.RsyncOptions.Basic = append([]string(nil), j.RsyncOptions.Basic...)
	c.RsyncOptions.Defaults = append([]string(nil), j.RsyncOptions.Defaults...)
	return &c
}

type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

type Outcome string

const (
	OutcomeRunning Outcome = "running"
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// SlaveOutcome result of instructing one slave.
type SlaveOutcome struct {
	SlaveId  int64  `json:"slave_id"`
	Hostname string `json:"hostname"`
	Acked    bool   `json:"acked"`
	Cause    string `json:"cause,omitempty"`
}

// JobRunRecord one execution of a SyncJob.
type JobRunRecord struct {
	RunId     string          `json:"run_id"`
	JobId     string          `json:"job_id"`
	Project   string          `json:"project"`
	Trigger   Trigger         `json:"trigger"`
	StartTime int64           `json:"start_time"`
	EndTime   int64           `json:"end_time"`
	Outcome   Outcome         `json:"outcome"`
	Cause     string          `json:"cause,omitempty"`
	Slaves    []*SlaveOutcome `json:"slaves"`
}

// JobView a job as reported by list_projects.
type JobView struct {
	*SyncJob
	Enabled     bool              `json:"enabled"`
	NextRunTime *time.Time        `json:"next_run_time"`
	Schedule    map[string]string `json:"schedule"`
	Running     int64             `json:"running"`
	LastRun     *JobRunRecord     `json:"last_run,omitempty"`
}
