// Package catalog wraps the messaging client with the books-service
// contract: three request/response operations and the notification events
// exchanged in both directions.
package catalog

// Message patterns served by books-service (request/response).
const (
	PatternCheckAvailability = "book.check.availability"
	PatternUpdateStatus      = "book.update.status"
	PatternFindOne           = "book.find.one"
)

// Events emitted to books-service (fire-and-forget).
const (
	EventLoanRequested  = "book.loan.requested"
	EventLoanReturned   = "book.loan.returned"
	EventSagaCompensate = "book.loan.saga.compensate"
)

// Events consumed from books-service (fire-and-forget).
const (
	EventLoanConfirmed = "loan.confirmed"
	EventLoanRejected  = "loan.rejected"
)

// Book statuses understood by books-service.
const (
	BookStatusAvailable = "available"
	BookStatusLoaned    = "loaned"
)

type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Status string `json:"status"`
}

// AvailabilityResult mirrors the book.check.availability reply envelope.
type AvailabilityResult struct {
	Success   bool   `json:"success"`
	Available bool   `json:"available"`
	Book      *Book  `json:"book,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BookResult mirrors the book.update.status / book.find.one reply envelope.
type BookResult struct {
	Success bool   `json:"success"`
	Data    *Book  `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LoanRequested is the payload for book.loan.requested. The user fields and
// timestamp are only populated by the outbox flow; the direct flows send
// just the ids.
type LoanRequested struct {
	BookID    string `json:"bookId"`
	LoanID    string `json:"loanId"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type LoanReturned struct {
	BookID string `json:"bookId"`
	LoanID string `json:"loanId"`
}

type SagaCompensate struct {
	BookID string `json:"bookId"`
	LoanID string `json:"loanId"`
	Reason string `json:"reason"`
}

// LoanConfirmed and LoanRejected arrive from books-service and drive the
// push-based saga confirmation flow.
type LoanConfirmed struct {
	LoanID string `json:"loanId"`
	BookID string `json:"bookId"`
}

type LoanRejected struct {
	LoanID string `json:"loanId"`
	BookID string `json:"bookId"`
	Reason string `json:"reason"`
}
