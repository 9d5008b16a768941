package module

// State is the lifecycle state of a Module.
type State int32

const (
	StateDisabled State = iota
	StateEnabling
	StateEnabled
	StateDisabling
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "Disabled"
	case StateEnabling:
		return "Enabling"
	case StateEnabled:
		return "Enabled"
	case StateDisabling:
		return "Disabling"
	default:
		return "Unknown"
	}
}
