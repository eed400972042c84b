package watch

// Status is the canonical watch-state shared by both platforms. Each client
// maps its own enum onto these values at the boundary.
type Status int

const (
	StatusUnknown Status = iota
	StatusWatching
	StatusCompleted
	StatusOnHold
	StatusDropped
	StatusPlanToWatch
)

var statusNames = map[Status]string{
	StatusUnknown:     "unknown",
	StatusWatching:    "watching",
	StatusCompleted:   "completed",
	StatusOnHold:      "on-hold",
	StatusDropped:     "dropped",
	StatusPlanToWatch: "plan-to-watch",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStatus maps a canonical status name back onto its enum value.
func ParseStatus(value string) Status {
	for status, name := range statusNames {
		if name == value {
			return status
		}
	}
	return StatusUnknown
}
