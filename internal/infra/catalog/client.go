package catalog

import (
	"context"

	"loans-service/internal/infra/messaging"
	"loans-service/internal/pkg/errs"
)

type Client struct {
	mc messaging.Client
}

func NewClient(mc messaging.Client) *Client {
	return &Client{mc: mc}
}

// CheckAvailability asks books-service whether the book can be loaned.
// A returned error means the collaborator could not be reached in time; a
// non-success result means it answered with a business refusal.
func (c *Client) CheckAvailability(ctx context.Context, bookID string) (*AvailabilityResult, error) {
	var result AvailabilityResult
	payload := struct {
		BookID string `json:"bookId"`
	}{BookID: bookID}

	if err := c.mc.Request(ctx, PatternCheckAvailability, payload, &result); err != nil {
		return nil, errs.Wrap(err, "availability check failed")
	}
	return &result, nil
}

// UpdateStatus asks books-service to move a book to the given status
// (the saga's reservation step uses status "loaned").
func (c *Client) UpdateStatus(ctx context.Context, bookID, status string) (*BookResult, error) {
	var result BookResult
	payload := struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}{ID: bookID, Status: status}

	if err := c.mc.Request(ctx, PatternUpdateStatus, payload, &result); err != nil {
		return nil, errs.Wrap(err, "status update failed")
	}
	return &result, nil
}

func (c *Client) FindOne(ctx context.Context, bookID string) (*BookResult, error) {
	var result BookResult
	payload := struct {
		ID string `json:"id"`
	}{ID: bookID}

	if err := c.mc.Request(ctx, PatternFindOne, payload, &result); err != nil {
		return nil, errs.Wrap(err, "book lookup failed")
	}
	return &result, nil
}

func (c *Client) EmitLoanRequested(ctx context.Context, ev LoanRequested) error {
	return c.mc.Emit(ctx, EventLoanRequested, ev)
}

func (c *Client) EmitLoanReturned(ctx context.Context, ev LoanReturned) error {
	return c.mc.Emit(ctx, EventLoanReturned, ev)
}

func (c *Client) EmitSagaCompensate(ctx context.Context, ev SagaCompensate) error {
	return c.mc.Emit(ctx, EventSagaCompensate, ev)
}
