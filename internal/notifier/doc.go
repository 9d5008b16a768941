// Package notifier renders install outcomes and fans them out to configured
// reporters (webhooks).
//
// # Contract
//
// The Dispatcher:
//  1. Receives a types.InstallOutcome from the install dispatcher
//  2. Suppresses repeats of the same (entry, release, status) within a
//     configurable window (default 60 minutes)
//  3. Rate limits per entry (default 100 outcomes/minute); excess outcomes are
//     dropped with a metric increment
//  4. Renders a one-line message and hands a ReportData to every Reporter
//     whose ShouldReport accepts the outcome status
//
// Reporters deliver asynchronously. Enqueue errors are logged and never fail
// the install.
//
// # Types
//
//	func NewDispatcher(logger *zap.Logger, opts DispatcherOptions) *Dispatcher
//	func (d *Dispatcher) Notify(ctx context.Context, o types.InstallOutcome) error
//	func RenderMessage(o types.InstallOutcome) string
//
//	type Reporter interface {
//	    Name() string
//	    Report(ctx context.Context, data ReportData) error
//	    ShouldReport(status types.OutcomeStatus) bool
//	    Start(ctx context.Context)
//	}
//
// # Webhook payload
//
//	{"type": "curator.install.outcome", "schemaVersion": "1",
//	 "timestamp": "<RFC3339>", "data": {<ReportData>}}
package notifier
