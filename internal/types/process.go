package types

import "time"

// ProcessInfo describes a process observed by the process monitor.
type ProcessInfo struct {
	PID         int       `json:"pid"`
	ProcessName string    `json:"processName"`
	WindowTitle string    `json:"windowTitle,omitempty"` // empty when unknown
	StartedAt   time.Time `json:"startedAt"`
}
