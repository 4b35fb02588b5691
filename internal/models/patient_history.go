package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MedicalEntry struct {
	Condition   string    `bson:"condition" json:"condition"`
	DiagnosedAt time.Time `bson:"diagnosedAt,omitempty" json:"diagnosedAt,omitempty"`
	Notes       string    `bson:"notes,omitempty" json:"notes,omitempty"`
}

type TestResult struct {
	Name   string    `bson:"name" json:"name"`
	Result string    `bson:"result" json:"result"`
	Date   time.Time `bson:"date,omitempty" json:"date,omitempty"`
}

type PatientHistory struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	User           primitive.ObjectID   `bson:"user" json:"user"`
	MedicalHistory []MedicalEntry       `bson:"medicalHistory,omitempty" json:"medicalHistory,omitempty"`
	TestResults    []TestResult         `bson:"testResults,omitempty" json:"testResults,omitempty"`
	Allergies      []string             `bson:"allergies,omitempty" json:"allergies,omitempty"`
	BloodGroup     string               `bson:"bloodGroup,omitempty" json:"bloodGroup,omitempty"`
	Appointments   []primitive.ObjectID `bson:"appointments,omitempty" json:"appointments,omitempty"`
	QRCode         string               `bson:"qrCode,omitempty" json:"qrCode,omitempty"` // base64 PNG
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt" json:"updatedAt"`
}
