package types

// IncidentStatus represents the status of an incident
type IncidentStatus string

const (
	IncidentStatusTriage     IncidentStatus = "triage"
	IncidentStatusHandling   IncidentStatus = "handling"
	IncidentStatusMonitoring IncidentStatus = "monitoring"
	IncidentStatusClosed     IncidentStatus = "closed"
)

// String returns the string representation of the status
func (s IncidentStatus) String() string {
	return string(s)
}

// IsValid checks if the status is valid
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusTriage, IncidentStatusHandling, IncidentStatusMonitoring, IncidentStatusClosed:
		return true
	default:
		return false
	}
}

// IsOpen returns true unless the incident is closed
func (s IncidentStatus) IsOpen() bool {
	return s != IncidentStatusClosed
}
