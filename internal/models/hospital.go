package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Hospital struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Code            string               `bson:"code" json:"code"` // unique short identifier
	Address         string               `bson:"address" json:"address"`
	Contact         string               `bson:"contact" json:"contact"`
	Departments     []string             `bson:"departments,omitempty" json:"departments,omitempty"`
	Doctors         []primitive.ObjectID `bson:"doctors,omitempty" json:"doctors,omitempty"`
	Admins          []primitive.ObjectID `bson:"admins,omitempty" json:"admins,omitempty"`
	BedCapacity     int                  `bson:"bedCapacity,omitempty" json:"bedCapacity,omitempty"`
	Facilities      []string             `bson:"facilities,omitempty" json:"facilities,omitempty"`
	Rating          float64              `bson:"rating,omitempty" json:"rating,omitempty"` // 0-5
	Notes           string               `bson:"notes,omitempty" json:"notes,omitempty"`
	LicenseVerified bool                 `bson:"licenseVerified" json:"licenseVerified"`
	LicenseDocument string               `bson:"licenseDocument,omitempty" json:"licenseDocument,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}
