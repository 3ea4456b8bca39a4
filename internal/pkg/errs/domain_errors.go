package errs

import "errors"

// Domain-specific sentinel errors shared across usecase layers. Outcomes the
// strategies report as LoanResult data (book unavailable, circuit open) have
// no sentinel; these cover failures that travel as Go errors.
var (
	// Catalog collaborator errors
	ErrCatalogUnreachable = errors.New("catalog unreachable")
	ErrCatalogRejected    = errors.New("catalog rejected operation")

	// Loan errors
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanAlreadyReturned = errors.New("loan already returned")
	ErrInvalidLoanState    = errors.New("invalid loan state transition")

	// Messaging and outbox errors
	ErrRequestTimeout = errors.New("request timed out")
	ErrPoisonEvent    = errors.New("outbox event exceeded retry budget")

	// Operation errors
	ErrDatabaseOperationFailed = errors.New("database operation failed")
)
