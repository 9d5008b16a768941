package types

import "time"

// EntryDetails is the catalog metadata of a content entry.
type EntryDetails struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`

	// LatestRelease is nil when the entry has never published a release.
	LatestRelease *Release `json:"latestRelease,omitempty"`
}

// HasRelease reports whether the entry has anything installable.
func (e *EntryDetails) HasRelease() bool {
	return e != nil && e.LatestRelease != nil
}

// Release is one published version of an entry.
type Release struct {
	ID          int64     `json:"id"`
	Version     string    `json:"version,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	DownloadURL string    `json:"downloadUrl,omitempty"`
	Size        int64     `json:"size,omitempty"`
}

// InstalledEntry is the local record of a previously installed entry.
type InstalledEntry struct {
	EntryID     int64     `json:"entryId"`
	ReleaseID   int64     `json:"releaseId"`
	InstalledAt time.Time `json:"installedAt"`
	Path        string    `json:"path,omitempty"`
}

// UpToDate reports whether the installed record is strictly newer than the
// release. Equal timestamps are not up to date.
func (i *InstalledEntry) UpToDate(r *Release) bool {
	if i == nil || r == nil {
		return false
	}
	return i.InstalledAt.After(r.CreatedAt)
}

// StreamProgress is a single progress sample from an install download.
type StreamProgress struct {
	BytesRead  int64 `json:"bytesRead"`
	TotalBytes int64 `json:"totalBytes"`
}

// Percent returns completion in [0,100], or -1 when the total is unknown.
func (p StreamProgress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return -1
	}
	return float64(p.BytesRead) * 100 / float64(p.TotalBytes)
}

// InstallProgress is the latest progress sample of one running install.
type InstallProgress struct {
	EntryID     int64  `json:"entryId"`
	ProcessName string `json:"processName"`
	StreamProgress
}

// ProgressFunc receives progress samples. Calls are fire-and-forget and must not block.
type ProgressFunc func(StreamProgress)
