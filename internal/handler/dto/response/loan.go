package response

import (
	"time"

	"loans-service/internal/domain/loan"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// LoanResponse mirrors the loan entity getters by name; copier fills the
// fields from the matching methods.
type LoanResponse struct {
	ID            uuid.UUID   `json:"id"`
	BookID        string      `json:"bookId"`
	UserID        string      `json:"userId"`
	UserName      string      `json:"userName"`
	LoanDate      time.Time   `json:"loanDate"`
	ReturnDate    *time.Time  `json:"returnDate,omitempty"`
	Status        loan.Status `json:"status"`
	FailureReason *string     `json:"failureReason,omitempty"`
}

func FromLoan(l *loan.Loan) *LoanResponse {
	if l == nil {
		return nil
	}
	var resp LoanResponse
	if err := copier.Copy(&resp, l); err != nil {
		return nil
	}
	return &resp
}

func FromLoans(loans []*loan.Loan) []*LoanResponse {
	out := make([]*LoanResponse, len(loans))
	for i, l := range loans {
		out[i] = FromLoan(l)
	}
	return out
}

// APIResponse is the uniform envelope of the loan endpoints. Error and
// Details are set only on failures; Strategy names the resilience strategy
// that handled the request.
type APIResponse struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Strategy string         `json:"strategy,omitempty"`
}
