package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AppointmentPending   = "pending"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no-show"
)

const (
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

type Appointment struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Patient         primitive.ObjectID `bson:"patient" json:"patient"`
	PatientHistory  primitive.ObjectID `bson:"patientHistory" json:"patientHistory"`
	Doctor          primitive.ObjectID `bson:"doctor" json:"doctor"`
	DoctorDetails   primitive.ObjectID `bson:"doctorDetails,omitempty" json:"doctorDetails,omitempty"`
	Hospital        primitive.ObjectID `bson:"hospital" json:"hospital"`
	AppointmentDate time.Time          `bson:"appointmentDate" json:"appointmentDate"`
	AppointmentTime string             `bson:"appointmentTime" json:"appointmentTime"`
	Status          string             `bson:"status" json:"status"`
	Reason          string             `bson:"reason" json:"reason"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	PaymentStatus   string             `bson:"paymentStatus" json:"paymentStatus"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidAppointmentStatus reports whether s is a known appointment status.
func ValidAppointmentStatus(s string) bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCompleted,
		AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// ValidAppointmentPaymentStatus reports whether s is a known appointment
// payment status.
func ValidAppointmentPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusPending:
		return true
	}
	return false
}
