package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role values are closed; anything else is rejected at the door.
const (
	RolePatient       = "patient"
	RoleDoctor        = "doctor"
	RoleHospitalAdmin = "hospitaladmin"
	RoleAdmin         = "admin"
)

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	Password       string             `bson:"password" json:"-"` // Hide from JSON responses
	Phone          string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role           string             `bson:"role" json:"role"`
	PatientHistory primitive.ObjectID `bson:"patientHistory,omitempty" json:"patientHistory,omitempty"` // set iff role=patient
	DoctorDetails  primitive.ObjectID `bson:"doctorDetails,omitempty" json:"doctorDetails,omitempty"`   // set iff role=doctor
	Hospital       primitive.ObjectID `bson:"hospital,omitempty" json:"hospital,omitempty"`             // set iff role=hospitaladmin
	ProfileImage   string             `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidRole reports whether role is one of the four known roles.
func ValidRole(role string) bool {
	switch role {
	case RolePatient, RoleDoctor, RoleHospitalAdmin, RoleAdmin:
		return true
	}
	return false
}
