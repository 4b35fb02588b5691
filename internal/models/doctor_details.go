package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduleSlot is one recurring availability window for a doctor.
type ScheduleSlot struct {
	Day   string `bson:"day" json:"day"` // e.g. "monday"
	Start string `bson:"start" json:"start"`
	End   string `bson:"end" json:"end"`
}

type DoctorDetails struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User           primitive.ObjectID `bson:"user" json:"user"`
	Specialty      string             `bson:"specialty" json:"specialty"`
	Qualifications []string           `bson:"qualifications,omitempty" json:"qualifications,omitempty"`
	Schedule       []ScheduleSlot     `bson:"schedule,omitempty" json:"schedule,omitempty"`
	Hospital       primitive.ObjectID `bson:"hospital,omitempty" json:"hospital,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
