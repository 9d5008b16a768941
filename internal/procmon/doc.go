// Package procmon watches the local process table and publishes a
// ProcessStarted event to its subscribers for every newly observed process.
//
// The Monitor polls a Scanner on a fixed interval. Processes that already
// exist at the first scan form the baseline and are not reported. Events are
// delivered from the polling goroutine, in PID order within one scan, to
// subscribers in subscription order.
package procmon
