package procmon

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"

	"github.com/potooio/curator/internal/types"
)

// Scanner lists the processes currently running.
type Scanner interface {
	Scan(ctx context.Context) ([]types.ProcessInfo, error)
}

// ScannerFunc adapts a function to a Scanner.
type ScannerFunc func(ctx context.Context) ([]types.ProcessInfo, error)

// Scan calls f(ctx).
func (f ScannerFunc) Scan(ctx context.Context) ([]types.ProcessInfo, error) { return f(ctx) }

// TitleReporter is implemented by scanners that can say whether the
// processes they return carry a window title.
type TitleReporter interface {
	ReportsWindowTitles() bool
}

// ReportsWindowTitles reports whether s fills ProcessInfo.WindowTitle.
// Scanners that do not implement TitleReporter are assumed to.
func ReportsWindowTitles(s Scanner) bool {
	if tr, ok := s.(TitleReporter); ok {
		return tr.ReportsWindowTitles()
	}
	return true
}

// ProcfsScanner reads the process table from a procfs mount.
type ProcfsScanner struct {
	fs procfs.FS
}

// NewProcfsScanner opens the procfs mounted at root (normally "/proc").
func NewProcfsScanner(root string) (*ProcfsScanner, error) {
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", root, err)
	}
	return &ProcfsScanner{fs: fs}, nil
}

// Scan lists every process with a readable comm. Processes that exit while
// being read are skipped.
func (s *ProcfsScanner) Scan(ctx context.Context) ([]types.ProcessInfo, error) {
	procs, err := s.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	out := make([]types.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		comm, err := p.Comm()
		if err != nil {
			continue
		}
		info := types.ProcessInfo{PID: p.PID, ProcessName: comm}
		if stat, err := p.Stat(); err == nil {
			if secs, err := stat.StartTime(); err == nil {
				info.StartedAt = time.Unix(0, int64(secs*float64(time.Second))).UTC()
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// ReportsWindowTitles implements TitleReporter. procfs has no notion of
// windows, so titles are always empty.
func (s *ProcfsScanner) ReportsWindowTitles() bool { return false }
