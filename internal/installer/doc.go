// Package installer runs installs for claimed detections.
//
// The Dispatcher supervises one goroutine per install. When the install
// returns, successful or not, the caller's onDone runs (the correlator
// removes the detection from the index there) and a types.InstallOutcome is
// published on Outcomes(), recorded in History(), and forwarded to the
// configured Notifier. Failures are also collected in Errors(). Installs that
// end because the module context was cancelled are recorded as Cancelled and
// are never counted as failures.
//
// HTTPInstaller downloads a release into <dir>/<entryID>/<releaseID>/ through
// a temp file and an atomic rename, then records the install in the registry.
package installer
