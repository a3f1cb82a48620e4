package model

// Status is the lifecycle state shared by reservations and custom room
// requests: both start pending and are moved exactly once by an
// administrator to approved or rejected.
type Status string

const (
	StatusPending  Status = "en_attente"
	StatusApproved Status = "validee"
	StatusRejected Status = "refusee"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}
