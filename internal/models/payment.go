package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentTypeCash      = "cash"
	PaymentTypeCard      = "card"
	PaymentTypeInsurance = "insurance"
	PaymentTypeOnline    = "online"
	PaymentTypeOther     = "other"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Patient       primitive.ObjectID `bson:"patient" json:"patient"`
	Appointment   primitive.ObjectID `bson:"appointment" json:"appointment"`
	Hospital      primitive.ObjectID `bson:"hospital" json:"hospital"`
	Doctor        primitive.ObjectID `bson:"doctor" json:"doctor"`
	Amount        float64            `bson:"amount" json:"amount"` // always > 0
	Currency      string             `bson:"currency" json:"currency"`
	PaymentType   string             `bson:"paymentType" json:"paymentType"`
	Status        string             `bson:"status" json:"status"`
	TransactionID string             `bson:"transactionId" json:"transactionId"`
	Provider      string             `bson:"provider,omitempty" json:"provider,omitempty"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidPaymentType reports whether t is a known payment type.
func ValidPaymentType(t string) bool {
	switch t {
	case PaymentTypeCash, PaymentTypeCard, PaymentTypeInsurance,
		PaymentTypeOnline, PaymentTypeOther:
		return true
	}
	return false
}

// ValidPaymentStatus reports whether s is a known payment status.
func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}
