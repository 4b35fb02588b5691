package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/services"
	"github.com/clinovia/hospital-api/internal/utils"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Hospital string `json:"hospital"` // required for hospitaladmin

	// Optional seed data for the linked records.
	Specialty      string   `json:"specialty"`
	Qualifications []string `json:"qualifications"`
	BloodGroup     string   `json:"bloodGroup"`
	Allergies      []string `json:"allergies"`
}

// CreateUser registers a user of any role. Patients get a PatientHistory,
// a QR code and a credentials email; doctors get a DoctorDetails record;
// hospital admins must reference an existing hospital.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if missing := utils.MissingFields([]string{"name", "email", "password", "role"}, map[string]string{
		"name": req.Name, "email": req.Email, "password": req.Password, "role": req.Role,
	}); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": missing})
		return
	}
	if !models.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown role: " + req.Role})
		return
	}

	ctx := c.Request.Context()
	now := time.Now()

	hashedPassword, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      req.Name,
		Email:     req.Email,
		Password:  hashedPassword,
		Phone:     req.Phone,
		Role:      req.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var hospital models.Hospital
	if req.Role == models.RoleHospitalAdmin {
		if req.Hospital == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": []string{"hospital"}})
			return
		}
		hospitalID, err := primitive.ObjectIDFromHex(req.Hospital)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
			return
		}
		err = h.DB.Collection("hospitals").FindOne(ctx, bson.M{"_id": hospitalID}).Decode(&hospital)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
			return
		}
		user.Hospital = hospitalID
	}

	var history *models.PatientHistory
	var details *models.DoctorDetails
	var qrBase64 string

	switch req.Role {
	case models.RolePatient:
		history = &models.PatientHistory{
			ID:         primitive.NewObjectID(),
			User:       user.ID,
			BloodGroup: req.BloodGroup,
			Allergies:  req.Allergies,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		qrBase64, err = services.GeneratePatientQR(services.QRPayload{
			HistoryID: history.ID.Hex(),
			UserID:    user.ID.Hex(),
			Email:     user.Email,
			IssuedAt:  now,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
			return
		}
		history.QRCode = qrBase64
		user.PatientHistory = history.ID

	case models.RoleDoctor:
		details = &models.DoctorDetails{
			ID:             primitive.NewObjectID(),
			User:           user.ID,
			Specialty:      req.Specialty,
			Qualifications: req.Qualifications,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		user.DoctorDetails = details.ID
	}

	if _, err := h.DB.Collection("users").InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if history != nil {
		if _, err := h.DB.Collection("patientHistories").InsertOne(ctx, history); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create patient history"})
			return
		}
		// Best-effort notification; the response never waits on SMTP.
		go h.Mailer.SendWelcomeEmail(&user, req.Password, qrBase64)
	}
	if details != nil {
		if _, err := h.DB.Collection("doctorDetails").InsertOne(ctx, details); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create doctor details"})
			return
		}
	}
	if req.Role == models.RoleHospitalAdmin {
		_, err := h.DB.Collection("hospitals").UpdateOne(ctx,
			bson.M{"_id": hospital.ID},
			bson.M{"$addToSet": bson.M{"admins": user.ID}})
		if err != nil {
			log.Printf("Failed to add admin %s to hospital %s: %v", user.ID.Hex(), hospital.ID.Hex(), err)
		}
	}

	c.JSON(http.StatusCreated, user)
}

// ListUsers returns the users visible to the caller's role.
func (h *Handler) ListUsers(c *gin.Context) {
	_, filter, ok := h.scopeFilter(c, authz.ResourceUser)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if role := c.Query("role"); role != "" {
		filter["role"] = role
	}

	cursor, err := h.DB.Collection("users").Find(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetUser fetches one user, re-checking ownership after the fetch.
func (h *Handler) GetUser(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var user models.User
	err = h.DB.Collection("users").FindOne(c.Request.Context(), bson.M{"_id": id}).Decode(&user)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if !authz.CanAccess(p, authz.ResourceUser, authz.Refs{Self: user.ID, Hospital: user.Hospital}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser merges the supplied fields into the user document.
func (h *Handler) UpdateUser(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	ctx := c.Request.Context()

	var existing models.User
	err = h.DB.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if !authz.CanAccess(p, authz.ResourceUser, authz.Refs{Self: existing.ID, Hospital: existing.Hospital}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this user"})
		return
	}

	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Email != "" {
		set["email"] = req.Email
	}
	if req.Phone != "" {
		set["phone"] = req.Phone
	}
	if req.Password != "" {
		hashed, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		set["password"] = hashed
	}
	if len(set) == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No update fields provided"})
		return
	}

	_, err = h.DB.Collection("users").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "An account with this email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated"})
}

// DeleteUser removes a user and cascades to the linked clinical records and
// profile image. No other references are cleaned up.
func (h *Handler) DeleteUser(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	ctx := c.Request.Context()

	var user models.User
	err = h.DB.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	// A hospital admin may only delete accounts belonging to their hospital.
	if !authz.CanAccess(p, authz.ResourceUser, authz.Refs{Self: user.ID, Hospital: user.Hospital}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this user"})
		return
	}

	if _, err := h.DB.Collection("users").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	switch user.Role {
	case models.RolePatient:
		if _, err := h.DB.Collection("patientHistories").DeleteOne(ctx, bson.M{"user": id}); err != nil {
			log.Printf("Failed to cascade patient history delete for %s: %v", id.Hex(), err)
		}
	case models.RoleDoctor:
		if _, err := h.DB.Collection("doctorDetails").DeleteOne(ctx, bson.M{"user": id}); err != nil {
			log.Printf("Failed to cascade doctor details delete for %s: %v", id.Hex(), err)
		}
	}
	if user.ProfileImage != "" {
		path := filepath.Join(h.Cfg.UploadDir, filepath.Base(user.ProfileImage))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove profile image %s: %v", path, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
