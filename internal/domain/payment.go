package domain

import "time"

// PaymentStatus is the closed set of payment request states.
// Approved and rejected are terminal.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// Decided reports whether the request has reached a terminal state.
func (s PaymentStatus) Decided() bool {
	return s == PaymentApproved || s == PaymentRejected
}

// Decision is an admin verdict on a payment request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// PaymentRequest is an owner's claim of an off-platform payment, waiting
// for a human to verify the receipt and approve or reject it.
type PaymentRequest struct {
	ID         string        `gorm:"primaryKey" json:"id"`
	OwnerID    string        `gorm:"column:owner_id;not null;index" json:"owner_id"`
	Amount     float64       `gorm:"column:amount;not null" json:"amount"`
	Status     PaymentStatus `gorm:"column:status;not null;index" json:"status"`
	ReceiptRef *string       `gorm:"column:receipt_ref" json:"receipt_ref,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// TableName pins the table name for the payment gate queries.
func (PaymentRequest) TableName() string { return "payment_requests" }
