package detection

import (
	"fmt"
	"regexp"

	"github.com/potooio/curator/internal/types"
)

// Predicate decides whether an observed process satisfies a trigger.
// Implementations must be safe for concurrent use.
type Predicate interface {
	Matches(p types.ProcessInfo) bool
	String() string
}

// ProcessNameOnly matches every process that reached its bucket.
type ProcessNameOnly struct{}

// Matches implements Predicate.
func (ProcessNameOnly) Matches(types.ProcessInfo) bool { return true }

func (ProcessNameOnly) String() string { return "process-name" }

// WindowTitle matches processes whose window title matches Pattern.
// A process with no known title never matches.
type WindowTitle struct {
	Pattern *regexp.Regexp
}

// NewWindowTitle compiles expr into a WindowTitle predicate.
func NewWindowTitle(expr string) (WindowTitle, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return WindowTitle{}, fmt.Errorf("compile window title pattern %q: %w", expr, err)
	}
	return WindowTitle{Pattern: re}, nil
}

// Matches implements Predicate.
func (w WindowTitle) Matches(p types.ProcessInfo) bool {
	if w.Pattern == nil || p.WindowTitle == "" {
		return false
	}
	return w.Pattern.MatchString(p.WindowTitle)
}

func (w WindowTitle) String() string {
	if w.Pattern == nil {
		return "window-title()"
	}
	return fmt.Sprintf("window-title(%s)", w.Pattern.String())
}

// PredicateFunc adapts an ordinary function to a Predicate.
type PredicateFunc func(p types.ProcessInfo) bool

// Matches implements Predicate.
func (f PredicateFunc) Matches(p types.ProcessInfo) bool { return f(p) }

func (f PredicateFunc) String() string { return "func" }

// ForTrigger returns the predicate for a curation trigger. A trigger with a
// window title pattern gets a WindowTitle predicate; an invalid pattern is
// returned as an error so the caller can decide whether to skip the trigger.
func ForTrigger(t types.ProfileTrigger) (Predicate, error) {
	if t.WindowTitle == "" {
		return ProcessNameOnly{}, nil
	}
	wt, err := NewWindowTitle(t.WindowTitle)
	if err != nil {
		return nil, err
	}
	return wt, nil
}

// Detection is a trigger waiting for its process to start. It is created by
// the index builder and consumed once by the correlator; it is never mutated.
type Detection struct {
	ProcessName string
	Predicate   Predicate
	Entry       *types.EntryDetails
}

// New returns a Detection. A nil predicate defaults to ProcessNameOnly.
func New(processName string, pred Predicate, entry *types.EntryDetails) *Detection {
	if pred == nil {
		pred = ProcessNameOnly{}
	}
	return &Detection{
		ProcessName: processName,
		Predicate:   pred,
		Entry:       entry,
	}
}

// Matches evaluates the detection's predicate against p.
func (d *Detection) Matches(p types.ProcessInfo) bool {
	if d == nil || d.Predicate == nil {
		return false
	}
	return d.Predicate.Matches(p)
}

// EntryID returns the catalog id of the detection's entry, or 0.
func (d *Detection) EntryID() int64 {
	if d == nil || d.Entry == nil {
		return 0
	}
	return d.Entry.ID
}
