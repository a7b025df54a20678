package entity

// AddProject body of add_project, also the seed file item.
type AddProject struct {
	Id            string        `json:"id"`
	Project       string        `json:"project"`
	RsyncHost     string        `json:"rsync_host"`
	RsyncModule   string        `json:"rsync_module"`
	Dest          string        `json:"dest"`
	RsyncPassword string        `json:"rsync_password"`
	RsyncOptions  *OptionsPatch `json:"rsync_options"`
	CronOptions   *CronSchedule `json:"cron_options"`
}

// UpdateBasic body of update_project/basic. Empty strings keep the stored value.
type UpdateBasic struct {
	Id            string        `json:"id"`
	Project       string        `json:"project"`
	RsyncHost     string        `json:"rsync_host"`
	RsyncModule   string        `json:"rsync_module"`
	Dest          string        `json:"dest"`
	RsyncPassword string        `json:"rsync_password"`
	RsyncOptions  *OptionsPatch `json:"rsync_options"`
}

// UpdateSchedule body of update_project/schedule. Schedule fields are read
// from cron_options, or from the top level when cron_options is absent.
type UpdateSchedule struct {
	Id          string        `json:"id"`
	CronOptions *CronSchedule `json:"cron_options"`
	CronSchedule
}

type IdRequest struct {
	Id string `json:"id"`
}

type AddSlave struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

// SlaveSyncRequest instruction POSTed to every slave after an upstream pull.
type SlaveSyncRequest struct {
	Project       string    `json:"project"`
	RsyncHost     string    `json:"rsync_host"`
	RsyncPassword string    `json:"rsync_password"`
	RsyncOptions  OptionSet `json:"rsync_options"`
	SlaveId       int64     `json:"slave_id"`
	JobId         string    `json:"job_id"`
	RunId         string    `json:"run_id"`
}

// SlaveComplete body of slave_rsync_complete.
type SlaveComplete struct {
	SlaveId int64  `json:"slave_id"`
	Project string `json:"project"`
	JobId   string `json:"job_id"`
	RunId   string `json:"run_id"`
}

// RemoveSlave body of remove_slave; id wins over hostname.
type RemoveSlave struct {
	Id       int64  `json:"id"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}
