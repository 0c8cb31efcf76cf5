// Package payment models mobile money payment attempts and polls their
// status until they settle.
package payment

import (
	"context"
	"fmt"
)

// Status is the lifecycle state of a payment attempt as reported by the backend.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccessful, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Attempt is a snapshot of a payment attempt.
type Attempt struct {
	ID                string
	Status            Status
	ResultDescription string
	Receipt           string
}

// Initiation is the backend's acknowledgement of a push payment request.
type Initiation struct {
	PaymentID         string
	CheckoutRequestID string
	Message           string
}

// Initiator starts a push payment for an order.
type Initiator interface {
	InitiatePayment(ctx context.Context, orderID, phone string) (*Initiation, error)
}

// StatusChecker queries the current state of a payment attempt.
type StatusChecker interface {
	PaymentStatus(ctx context.Context, paymentID string) (*Attempt, error)
}

// RejectedError is returned by an Initiator when the provider refused the
// request with a well-formed response.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment initiation rejected: %s", e.Message)
}

// FailedError indicates the payment reached a failed or cancelled state.
type FailedError struct {
	PaymentID string
	Status    Status
	Reason    string
}

func (e *FailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("payment %s %s", e.PaymentID, e.Status)
	}
	return fmt.Sprintf("payment %s %s: %s", e.PaymentID, e.Status, e.Reason)
}

// TimeoutError indicates the payment did not settle within the polling bounds.
type TimeoutError struct {
	PaymentID string
	Attempts  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("payment %s did not settle after %d status checks", e.PaymentID, e.Attempts)
}
