package entity

import "time"

// DocumentJob is an outbound document-generation task. Jobs are keyed by
// (session, form type, data version) so a replayed enqueue or a retried
// worker never regenerates the same document twice.
type DocumentJob struct {
	ID          int64  `json:"id"`
	SessionID   string `json:"session_id"`
	EmployeeID  string `json:"employee_id"`
	FormType    string `json:"form_type"`
	DataVersion int    `json:"data_version"`

	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     string    `json:"last_error,omitempty"`
	OutputPath    string    `json:"output_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job will not be retried again.
func (j *DocumentJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
