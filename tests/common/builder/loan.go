package builder

import (
	"time"

	"loans-service/internal/domain/loan"

	"github.com/google/uuid"
)

var DefaultLoanDate = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// LoanBuilder assembles loan entities for tests. BuildDomain goes through
// NewLoan validation; BuildSeed reconstructs any state directly.
type LoanBuilder struct {
	id            uuid.UUID
	bookID        string
	userID        string
	userName      string
	loanDate      time.Time
	returnDate    *time.Time
	status        loan.Status
	failureReason *string
}

func NewLoanBuilder() *LoanBuilder {
	return &LoanBuilder{
		id:       uuid.New(),
		bookID:   "book-001",
		userID:   "user-001",
		userName: "Ana García",
		loanDate: DefaultLoanDate,
		status:   loan.StatusActive,
	}
}

func (b *LoanBuilder) WithID(id uuid.UUID) *LoanBuilder        { b.id = id; return b }
func (b *LoanBuilder) WithBookID(v string) *LoanBuilder        { b.bookID = v; return b }
func (b *LoanBuilder) WithUserID(v string) *LoanBuilder        { b.userID = v; return b }
func (b *LoanBuilder) WithUserName(v string) *LoanBuilder      { b.userName = v; return b }
func (b *LoanBuilder) WithLoanDate(t time.Time) *LoanBuilder   { b.loanDate = t; return b }
func (b *LoanBuilder) WithStatus(s loan.Status) *LoanBuilder   { b.status = s; return b }
func (b *LoanBuilder) WithReturnDate(t time.Time) *LoanBuilder { b.returnDate = &t; return b }
func (b *LoanBuilder) WithFailureReason(r string) *LoanBuilder { b.failureReason = &r; return b }

func (b *LoanBuilder) BuildDomain() (*loan.Loan, error) {
	return loan.NewLoan(b.bookID, b.userID, b.userName, b.status, b.loanDate)
}

func (b *LoanBuilder) BuildSeed() *loan.Loan {
	return loan.Reconstruct(b.id, b.bookID, b.userID, b.userName, b.loanDate, b.returnDate, b.status, b.failureReason)
}
