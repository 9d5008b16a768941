package notifier

import (
	"context"

	"github.com/potooio/curator/internal/types"
)

// ReportData is the payload handed to reporters.
type ReportData struct {
	types.InstallOutcome

	// Message is the rendered one-line summary.
	Message string `json:"message"`
	// DurationMs is how long the install ran.
	DurationMs int64 `json:"durationMs"`
}

// Reporter is the interface for external outcome channels (webhook, chat, etc.).
// Each implementation handles its own async delivery, retry logic, and filtering.
type Reporter interface {
	// Name returns the reporter's identifier (e.g., "webhook").
	Name() string

	// Report delivers an outcome payload to the external channel.
	Report(ctx context.Context, data ReportData) error

	// ShouldReport returns true if this reporter handles outcomes with the given status.
	ShouldReport(status types.OutcomeStatus) bool

	// Start begins any background workers. Non-blocking.
	Start(ctx context.Context)
}

// closer is implemented by reporters that drain queued work on shutdown.
type closer interface {
	Close()
}
