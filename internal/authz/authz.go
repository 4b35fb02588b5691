// Package authz centralizes the role-based visibility rules. Every handler
// consults the same policy table instead of re-deriving role checks inline.
package authz

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/models"
)

var (
	ErrForbidden       = errors.New("forbidden for role")
	ErrNoHospital      = errors.New("hospital admin has no associated hospital")
	ErrNoPrincipal     = errors.New("no authenticated principal in context")
	ErrUnknownResource = errors.New("unknown resource")
)

type Resource string

const (
	ResourceUser           Resource = "user"
	ResourceHospital       Resource = "hospital"
	ResourceDoctorDetails  Resource = "doctordetails"
	ResourcePatientHistory Resource = "patienthistory"
	ResourceAppointment    Resource = "appointment"
	ResourcePayment        Resource = "payment"
)

// Scope is the visibility a role gets on a resource.
type Scope int

const (
	ScopeDenied   Scope = iota // no access at all
	ScopeSelf                  // records referencing the principal
	ScopeHospital              // records referencing the principal's hospital
	ScopeAll                   // unrestricted
)

// Principal is the authenticated caller, extracted from the JWT claims.
type Principal struct {
	ID       primitive.ObjectID
	Role     string
	Hospital primitive.ObjectID // zero unless the token carries one
}

// policy is the single source of truth for list/read visibility. Mutation
// rules stay in the handlers, but they re-use CanAccess for ownership.
var policy = map[Resource]map[string]Scope{
	ResourceUser: {
		models.RolePatient:       ScopeSelf,
		models.RoleDoctor:        ScopeSelf,
		models.RoleHospitalAdmin: ScopeHospital,
		models.RoleAdmin:         ScopeAll,
	},
	ResourceHospital: {
		models.RolePatient:       ScopeAll, // hospital directory is not sensitive
		models.RoleDoctor:        ScopeAll,
		models.RoleHospitalAdmin: ScopeHospital,
		models.RoleAdmin:         ScopeAll,
	},
	ResourceDoctorDetails: {
		models.RolePatient:       ScopeAll, // patients browse doctors to book
		models.RoleDoctor:        ScopeSelf,
		models.RoleHospitalAdmin: ScopeHospital,
		models.RoleAdmin:         ScopeAll,
	},
	ResourcePatientHistory: {
		models.RolePatient:       ScopeSelf,
		models.RoleDoctor:        ScopeDenied, // only via the dedicated per-doctor listing
		models.RoleHospitalAdmin: ScopeDenied, // histories carry no hospital reference
		models.RoleAdmin:         ScopeAll,
	},
	ResourceAppointment: {
		models.RolePatient:       ScopeSelf,
		models.RoleDoctor:        ScopeSelf,
		models.RoleHospitalAdmin: ScopeHospital,
		models.RoleAdmin:         ScopeAll,
	},
	ResourcePayment: {
		models.RolePatient:       ScopeSelf,
		models.RoleDoctor:        ScopeSelf,
		models.RoleHospitalAdmin: ScopeHospital,
		models.RoleAdmin:         ScopeAll,
	},
}

// selfField names the document field that must match the principal's id for
// ScopeSelf, per resource and role.
var selfField = map[Resource]map[string]string{
	ResourceUser: {
		models.RolePatient: "_id",
		models.RoleDoctor:  "_id",
	},
	ResourceDoctorDetails: {
		models.RoleDoctor: "user",
	},
	ResourcePatientHistory: {
		models.RolePatient: "user",
	},
	ResourceAppointment: {
		models.RolePatient: "patient",
		models.RoleDoctor:  "doctor",
	},
	ResourcePayment: {
		models.RolePatient: "patient",
		models.RoleDoctor:  "doctor",
	},
}

// hospitalField names the document field holding the hospital reference for
// ScopeHospital. Hospitals themselves match on _id.
var hospitalField = map[Resource]string{
	ResourceUser:          "hospital",
	ResourceHospital:      "_id",
	ResourceDoctorDetails: "hospital",
	ResourceAppointment:   "hospital",
	ResourcePayment:       "hospital",
}

// FilterFor builds the query restriction applied before any list or read of
// the given resource. ErrForbidden means the role may not touch the resource
// at all; ErrNoHospital means a hospital admin is not linked to a hospital.
func FilterFor(p Principal, res Resource) (bson.M, error) {
	scopes, ok := policy[res]
	if !ok {
		return nil, ErrUnknownResource
	}
	scope, ok := scopes[p.Role]
	if !ok {
		return nil, ErrForbidden
	}

	switch scope {
	case ScopeAll:
		return bson.M{}, nil
	case ScopeSelf:
		field := selfField[res][p.Role]
		if field == "" {
			return nil, ErrForbidden
		}
		return bson.M{field: p.ID}, nil
	case ScopeHospital:
		if p.Hospital.IsZero() {
			return nil, ErrNoHospital
		}
		field, ok := hospitalField[res]
		if !ok {
			return nil, ErrForbidden
		}
		return bson.M{field: p.Hospital}, nil
	default:
		return nil, ErrForbidden
	}
}

// Refs carries the ownership references of a fetched document, used for the
// post-fetch re-check on single-record reads.
type Refs struct {
	Self     primitive.ObjectID // the document itself (users, hospitals)
	Patient  primitive.ObjectID
	Doctor   primitive.ObjectID
	Hospital primitive.ObjectID
}

// CanAccess re-checks that a fetched record belongs to the caller. Handlers
// call it after FindOne so a non-owner gets 403 while a missing record stays
// a plain 404.
func CanAccess(p Principal, res Resource, refs Refs) bool {
	scope, ok := policy[res][p.Role]
	if !ok {
		return false
	}
	switch scope {
	case ScopeAll:
		return true
	case ScopeSelf:
		switch p.Role {
		case models.RolePatient:
			return refs.Patient == p.ID || refs.Self == p.ID
		case models.RoleDoctor:
			return refs.Doctor == p.ID || refs.Self == p.ID
		}
		return false
	case ScopeHospital:
		if p.Hospital.IsZero() {
			return false
		}
		return refs.Hospital == p.Hospital || refs.Self == p.Hospital
	default:
		return false
	}
}

// FromContext rebuilds the principal from the values the auth middleware
// stored on the gin context.
func FromContext(c *gin.Context) (Principal, error) {
	idHex, ok := c.Get("userID")
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	role, ok := c.Get("userRole")
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	id, err := primitive.ObjectIDFromHex(idHex.(string))
	if err != nil {
		return Principal{}, err
	}
	p := Principal{ID: id, Role: role.(string)}
	if hospHex, ok := c.Get("userHospital"); ok {
		if s, _ := hospHex.(string); s != "" {
			if hosp, err := primitive.ObjectIDFromHex(s); err == nil {
				p.Hospital = hosp
			}
		}
	}
	return p, nil
}
