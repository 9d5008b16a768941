package types

import "time"

// OutcomeStatus is the terminal state of one install attempt.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "Succeeded"
	OutcomeFailed    OutcomeStatus = "Failed"
	OutcomeCancelled OutcomeStatus = "Cancelled"
)

// InstallOutcome records how a dispatched install finished.
type InstallOutcome struct {
	EntryID     int64         `json:"entryId"`
	EntryName   string        `json:"entryName,omitempty"`
	ReleaseID   int64         `json:"releaseId"`
	Version     string        `json:"version,omitempty"`
	ProcessName string        `json:"processName"`
	Status      OutcomeStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`

	// Err is the install error, if any. Not serialized.
	Err error `json:"-"`
}

// Duration returns how long the install ran.
func (o InstallOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
