package loan

// Status models the loan lifecycle. A loan starts as pending (saga flow) or
// active (optimistic flows), and terminates as returned or failed. Terminal
// states accept no further transitions.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusReturned Status = "returned"
	StatusFailed   Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusReturned || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusReturned, StatusFailed:
		return true
	}
	return false
}
