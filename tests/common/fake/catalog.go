package fake

import (
	"context"
	"sync"

	"loans-service/internal/infra/catalog"
)

// Catalog simulates the books-service collaborator. Each operation can be
// scripted to fail; emitted events are recorded for assertions.
type Catalog struct {
	mu sync.Mutex

	Available bool
	CheckErr  error
	UpdateErr error
	EmitErr   error

	// CheckFailure makes CheckAvailability reply success=false with this
	// error text, the shape books-service uses for an unknown book.
	CheckFailure string

	// UpdateFailure makes UpdateStatus reply success=false with this text.
	UpdateFailure string

	CheckCalls  int
	UpdateCalls int

	// Reserved tracks bookId→status of UpdateStatus calls.
	Reserved map[string]string

	Requested   []catalog.LoanRequested
	Returned    []catalog.LoanReturned
	Compensated []catalog.SagaCompensate
}

func NewCatalog() *Catalog {
	return &Catalog{Available: true, Reserved: make(map[string]string)}
}

func (c *Catalog) CheckAvailability(_ context.Context, bookID string) (*catalog.AvailabilityResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CheckCalls++
	if c.CheckErr != nil {
		return nil, c.CheckErr
	}
	if c.CheckFailure != "" {
		return &catalog.AvailabilityResult{Success: false, Error: c.CheckFailure}, nil
	}
	return &catalog.AvailabilityResult{
		Success:   true,
		Available: c.Available,
		Book:      &catalog.Book{ID: bookID, Status: catalog.BookStatusAvailable},
	}, nil
}

func (c *Catalog) UpdateStatus(_ context.Context, bookID, status string) (*catalog.BookResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UpdateCalls++
	if c.UpdateErr != nil {
		return nil, c.UpdateErr
	}
	if c.UpdateFailure != "" {
		return &catalog.BookResult{Success: false, Error: c.UpdateFailure}, nil
	}
	c.Reserved[bookID] = status
	return &catalog.BookResult{Success: true, Data: &catalog.Book{ID: bookID, Status: status}}, nil
}

func (c *Catalog) EmitLoanRequested(_ context.Context, ev catalog.LoanRequested) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EmitErr != nil {
		return c.EmitErr
	}
	c.Requested = append(c.Requested, ev)
	return nil
}

func (c *Catalog) EmitLoanReturned(_ context.Context, ev catalog.LoanReturned) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.EmitErr != nil {
		return c.EmitErr
	}
	c.Returned = append(c.Returned, ev)
	return nil
}

func (c *Catalog) EmitSagaCompensate(_ context.Context, ev catalog.SagaCompensate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Compensated = append(c.Compensated, ev)
	return nil
}
