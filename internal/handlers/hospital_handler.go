package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/services"
	"github.com/clinovia/hospital-api/internal/utils"
)

type hospitalRequest struct {
	Name        string   `json:"name"`
	Code        string   `json:"code"`
	Address     string   `json:"address"`
	Contact     string   `json:"contact"`
	Departments []string `json:"departments"`
	BedCapacity int      `json:"bedCapacity"`
	Facilities  []string `json:"facilities"`
	Rating      float64  `json:"rating"`
	Notes       string   `json:"notes"`
}

// CreateHospital registers a hospital. Admin only (enforced at the route).
func (h *Handler) CreateHospital(c *gin.Context) {
	var req hospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if missing := utils.MissingFields([]string{"name", "code", "address"}, map[string]string{
		"name": req.Name, "code": req.Code, "address": req.Address,
	}); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": missing})
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be between 0 and 5"})
		return
	}

	now := time.Now()
	hospital := models.Hospital{
		ID:          primitive.NewObjectID(),
		Name:        req.Name,
		Code:        req.Code,
		Address:     req.Address,
		Contact:     req.Contact,
		Departments: req.Departments,
		BedCapacity: req.BedCapacity,
		Facilities:  req.Facilities,
		Rating:      req.Rating,
		Notes:       req.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := h.DB.Collection("hospitals").InsertOne(c.Request.Context(), hospital); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A hospital with this code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create hospital"})
		return
	}
	c.JSON(http.StatusCreated, hospital)
}

func (h *Handler) ListHospitals(c *gin.Context) {
	_, filter, ok := h.scopeFilter(c, authz.ResourceHospital)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	cursor, err := h.DB.Collection("hospitals").Find(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve hospitals"})
		return
	}
	defer cursor.Close(ctx)

	hospitals := []models.Hospital{}
	if err := cursor.All(ctx, &hospitals); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode hospitals"})
		return
	}
	c.JSON(http.StatusOK, hospitals)
}

func (h *Handler) GetHospital(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
		return
	}

	var hospital models.Hospital
	err = h.DB.Collection("hospitals").FindOne(c.Request.Context(), bson.M{"_id": id}).Decode(&hospital)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
		return
	}

	if !authz.CanAccess(p, authz.ResourceHospital, authz.Refs{Self: hospital.ID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this hospital"})
		return
	}
	c.JSON(http.StatusOK, hospital)
}

func (h *Handler) UpdateHospital(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Hospital
	err = h.DB.Collection("hospitals").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
		return
	}
	// Only an admin or this hospital's own admin may mutate it.
	if p.Role != models.RoleAdmin && !(p.Role == models.RoleHospitalAdmin && p.Hospital == existing.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this hospital"})
		return
	}

	var req hospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating must be between 0 and 5"})
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Code != "" {
		set["code"] = req.Code
	}
	if req.Address != "" {
		set["address"] = req.Address
	}
	if req.Contact != "" {
		set["contact"] = req.Contact
	}
	if req.Departments != nil {
		set["departments"] = req.Departments
	}
	if req.BedCapacity > 0 {
		set["bedCapacity"] = req.BedCapacity
	}
	if req.Facilities != nil {
		set["facilities"] = req.Facilities
	}
	if req.Rating > 0 {
		set["rating"] = req.Rating
	}
	if req.Notes != "" {
		set["notes"] = req.Notes
	}

	_, err = h.DB.Collection("hospitals").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "A hospital with this code already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update hospital"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Hospital updated"})
}

func (h *Handler) DeleteHospital(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
		return
	}

	result, err := h.DB.Collection("hospitals").DeleteOne(c.Request.Context(), bson.M{"_id": id})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete hospital"})
		return
	}
	if result.DeletedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Hospital deleted"})
}

// VerifyLicense accepts an uploaded license image, OCRs it, fuzzy-matches the
// extracted holder name against the hospital name, and flags the hospital
// verified on success. The final approval call is simulated.
func (h *Handler) VerifyLicense(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
		return
	}
	ctx := c.Request.Context()

	var hospital models.Hospital
	err = h.DB.Collection("hospitals").FindOne(ctx, bson.M{"_id": id}).Decode(&hospital)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
		return
	}
	if p.Role != models.RoleAdmin && !(p.Role == models.RoleHospitalAdmin && p.Hospital == hospital.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this hospital"})
		return
	}

	file, err := c.FormFile("license")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": []string{"license"}})
		return
	}
	expectedName := c.PostForm("name")
	if expectedName == "" {
		expectedName = hospital.Name
	}

	licenseDir := filepath.Join(h.Cfg.UploadDir, "licenses")
	if err := os.MkdirAll(licenseDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store license document"})
		return
	}
	dest := filepath.Join(licenseDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store license document"})
		return
	}

	result, err := h.Verifier.Verify(ctx, dest, expectedName)
	if err != nil {
		var mismatch *services.NameMismatchError
		switch {
		case errors.Is(err, services.ErrLicenseNameNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not find a name on the license document"})
		case errors.As(err, &mismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": mismatch.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "License verification failed"})
		}
		return
	}

	_, err = h.DB.Collection("hospitals").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"licenseVerified": true,
		"licenseDocument": dest,
		"updatedAt":       time.Now(),
	}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update hospital"})
		return
	}

	c.JSON(http.StatusOK, result)
}
