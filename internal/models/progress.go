package models

type OverallStatus string

const (
	OverallPending        OverallStatus = "pending"
	OverallInProgress     OverallStatus = "in_progress"
	OverallCompleted      OverallStatus = "completed"
	OverallFailed         OverallStatus = "failed"
	OverallPartialFailure OverallStatus = "partial_failure"
)

// JobProgress is a display-only rollup over a set of jobs.
type JobProgress struct {
	SessionID string `json:"sessionId,omitempty"`
	BatchID   string `json:"batchId,omitempty"`

	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Scheduled  int `json:"scheduled"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`

	Status OverallStatus `json:"status"`
	Jobs   []EmailJob    `json:"jobs"`
}
