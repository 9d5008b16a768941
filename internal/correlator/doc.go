// Package correlator matches ProcessStarted events against the detection
// index and hands matched detections to the install dispatcher.
//
// # Contract
//
// For each event the Correlator:
//  1. Drops the event if the token bucket is empty (default 100 events/second)
//  2. Suppresses a repeated (pid, process name) pair seen within 5 minutes
//  3. Acquires the current index through its Handle; an invalidated handle is a no-op
//  4. Claims the first unclaimed detection in the bucket whose predicate matches
//  5. Dispatches the claimed detection; the detection is removed from the
//     index once the install returns, successful or not
//
// Sibling detections in the same bucket are untouched and may fire on a
// later event. A detection is dispatched at most once.
//
// # Constructor
//
//	func New(handle *indexer.Handle, dispatcher Dispatcher, logger *zap.Logger) *Correlator
//	func (c *Correlator) HandleProcessStarted(ctx context.Context, p types.ProcessInfo)
//	func (c *Correlator) Start(ctx context.Context) error  // blocking, dedupe cache cleanup
package correlator
