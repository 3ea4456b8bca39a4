package loan

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyBookID     = errors.New("book id is required")
	ErrEmptyUserID     = errors.New("user id is required")
	ErrEmptyUserName   = errors.New("user name is required")
	ErrInvalidStatus   = errors.New("invalid loan status")
	ErrAlreadyReturned = errors.New("loan already returned")
	ErrNotConfirmable  = errors.New("only pending loans can be confirmed")
	ErrNotRejectable   = errors.New("loan is in a terminal state")
	ErrNotReturnable   = errors.New("only active loans can be returned")
)

const MaxFailureReasonLength = 500

// Loan is one lending transaction. Its state is mutated only through the
// transition methods below; the repository persists whatever they decide.
type Loan struct {
	id            uuid.UUID
	bookID        string
	userID        string
	userName      string
	loanDate      time.Time
	returnDate    *time.Time
	status        Status
	failureReason *string
}

// NewLoan creates a loan in the given initial status. Strategies use
// StatusPending (saga) or StatusActive (optimistic flows).
func NewLoan(bookID, userID, userName string, status Status, now time.Time) (*Loan, error) {
	if bookID == "" {
		return nil, ErrEmptyBookID
	}
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if userName == "" {
		return nil, ErrEmptyUserName
	}
	if status != StatusPending && status != StatusActive {
		return nil, ErrInvalidStatus
	}

	return &Loan{
		id:       uuid.New(),
		bookID:   bookID,
		userID:   userID,
		userName: userName,
		loanDate: now,
		status:   status,
	}, nil
}

// Reconstruct rebuilds a loan from persisted state without validation.
func Reconstruct(
	id uuid.UUID,
	bookID, userID, userName string,
	loanDate time.Time,
	returnDate *time.Time,
	status Status,
	failureReason *string,
) *Loan {
	return &Loan{
		id:            id,
		bookID:        bookID,
		userID:        userID,
		userName:      userName,
		loanDate:      loanDate,
		returnDate:    returnDate,
		status:        status,
		failureReason: failureReason,
	}
}

func (l *Loan) ID() uuid.UUID          { return l.id }
func (l *Loan) BookID() string         { return l.bookID }
func (l *Loan) UserID() string         { return l.userID }
func (l *Loan) UserName() string       { return l.userName }
func (l *Loan) LoanDate() time.Time    { return l.loanDate }
func (l *Loan) ReturnDate() *time.Time { return l.returnDate }
func (l *Loan) Status() Status         { return l.status }
func (l *Loan) FailureReason() *string { return l.failureReason }

// Confirm moves a pending loan to active (saga confirmation). Confirming an
// already active loan is a no-op so duplicate confirmations stay harmless.
func (l *Loan) Confirm() error {
	if l.status == StatusActive {
		return nil
	}
	if l.status != StatusPending {
		return ErrNotConfirmable
	}
	l.status = StatusActive
	return nil
}

// Reject moves a pending or active loan to failed, recording the reason.
// Rejecting an already failed loan is a no-op (idempotent compensation).
func (l *Loan) Reject(reason string) error {
	if l.status == StatusFailed {
		return nil
	}
	if l.status == StatusReturned {
		return ErrNotRejectable
	}
	if len(reason) > MaxFailureReasonLength {
		reason = reason[:MaxFailureReasonLength]
	}
	l.status = StatusFailed
	l.failureReason = &reason
	return nil
}

// Return completes an active loan.
func (l *Loan) Return(now time.Time) error {
	if l.status == StatusReturned {
		return ErrAlreadyReturned
	}
	if l.status != StatusActive {
		return ErrNotReturnable
	}
	l.status = StatusReturned
	l.returnDate = &now
	return nil
}
