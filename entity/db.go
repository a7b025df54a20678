package entity

// SyncJobRow table sync_job
type SyncJobRow struct {
	Id            string `db:"id"`
	Project       string `db:"project"`
	RsyncHost     string `db:"rsync_host"`
	RsyncModule   string `db:"rsync_module"`
	Dest          string `db:"dest"`
	RsyncPassword string `db:"rsync_password"`
	RsyncOptions  string `db:"rsync_options"`
	CronOptions   string `db:"cron_options"`
	Paused        int    `db:"paused"`
	CreateTime    int64  `db:"create_time"`
	UpdateTime    int64  `db:"update_time"`
}

// SlaveNode table slave_node
type SlaveNode struct {
	Id         int64  `json:"id" db:"id"`
	Hostname   string `json:"hostname" db:"hostname"`
	Port       int    `json:"port" db:"port"`
	CreateTime int64  `json:"create_time" db:"create_time"`
}

// JobRunRow table job_run
type JobRunRow struct {
	Id        int64  `db:"id"`
	RunId     string `db:"run_id"`
	JobId     string `db:"job_id"`
	Project   string `db:"project"`
	Trigger   string `db:"trigger_by"`
	StartTime int64  `db:"start_time"`
	EndTime   int64  `db:"end_time"`
	Outcome   string `db:"outcome"`
	Cause     string `db:"cause"`
	Slaves    string `db:"slaves"`
}

// SlaveSyncLog table slave_sync_log
type SlaveSyncLog struct {
	Id         int64  `json:"id" db:"id"`
	SlaveId    int64  `json:"slave_id" db:"slave_id"`
	Hostname   string `json:"hostname" db:"hostname"`
	Project    string `json:"project" db:"project"`
	JobId      string `json:"job_id" db:"job_id"`
	RunId      string `json:"run_id" db:"run_id"`
	CreateTime int64  `json:"create_time" db:"create_time"`
}
