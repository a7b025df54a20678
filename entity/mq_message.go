package entity

type EventType string

const (
	RunFinished    EventType = "run_finished"
	SlaveCompleted EventType = "slave_completed"
)

// RunEvent published when a run finishes.
type RunEvent struct {
	Type EventType     `json:"type"`
	Run  *JobRunRecord `json:"run"`
	Time int64         `json:"time"`
}

// SlaveEvent published when a slave reports a finished pull.
type SlaveEvent struct {
	Type     EventType      `json:"type"`
	Hostname string         `json:"hostname"`
	Complete *SlaveComplete `json:"complete"`
	Time     int64          `json:"time"`
}
