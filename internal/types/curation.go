package types

// Curation is the root of a curation document: an ordered list of profiles
// that should be installed when their trigger processes start.
type Curation struct {
	Profiles []CurationProfile `json:"profiles" toml:"profiles"`
}

// CurationProfile identifies one remote catalog entry and the processes that
// trigger its installation.
type CurationProfile struct {
	// WorkshopID is the catalog identifier of the entry to install.
	WorkshopID int64 `json:"workshopId" toml:"workshopId"`

	// ProfileTriggers are evaluated in document order.
	ProfileTriggers []ProfileTrigger `json:"profileTriggers" toml:"profileTriggers"`
}

// ProfileTrigger names the OS process that triggers an install.
type ProfileTrigger struct {
	// ProcessName is matched case-sensitively against the name reported by the OS.
	ProcessName string `json:"processName" toml:"processName"`

	// WindowTitle is an optional regular expression matched against the
	// process's main window title. Empty means the process name alone decides.
	WindowTitle string `json:"windowTitle,omitempty" toml:"windowTitle,omitempty"`
}

// TriggerCount returns the total number of triggers across all profiles.
func (c *Curation) TriggerCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, p := range c.Profiles {
		n += len(p.ProfileTriggers)
	}
	return n
}

// ProcessNames returns every trigger process name in document order, including duplicates.
func (c *Curation) ProcessNames() []string {
	if c == nil {
		return nil
	}
	var names []string
	for _, p := range c.Profiles {
		for _, t := range p.ProfileTriggers {
			names = append(names, t.ProcessName)
		}
	}
	return names
}
