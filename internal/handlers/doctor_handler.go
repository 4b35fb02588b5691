package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/utils"
)

type doctorDetailsRequest struct {
	User           string                `json:"user"`
	Specialty      string                `json:"specialty"`
	Qualifications []string              `json:"qualifications"`
	Schedule       []models.ScheduleSlot `json:"schedule"`
	Hospital       string                `json:"hospital"`
}

// CreateDoctorDetails attaches a professional profile to an existing doctor
// user and registers the doctor with the hospital.
func (h *Handler) CreateDoctorDetails(c *gin.Context) {
	var req doctorDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if missing := utils.MissingFields([]string{"user", "specialty"}, map[string]string{
		"user": req.User, "specialty": req.Specialty,
	}); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": missing})
		return
	}

	userID, err := primitive.ObjectIDFromHex(req.User)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}
	ctx := c.Request.Context()

	var user models.User
	err = h.DB.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if user.Role != models.RoleDoctor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Referenced user is not a doctor"})
		return
	}

	// A doctor carries exactly one details record.
	count, err := h.DB.Collection("doctorDetails").CountDocuments(ctx, bson.M{"user": userID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing details"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Doctor details already exist for this user"})
		return
	}

	now := time.Now()
	details := models.DoctorDetails{
		ID:             primitive.NewObjectID(),
		User:           userID,
		Specialty:      req.Specialty,
		Qualifications: req.Qualifications,
		Schedule:       req.Schedule,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if req.Hospital != "" {
		hospitalID, err := primitive.ObjectIDFromHex(req.Hospital)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
			return
		}
		if err := h.DB.Collection("hospitals").FindOne(ctx, bson.M{"_id": hospitalID}).Err(); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
			return
		}
		details.Hospital = hospitalID
	}

	if _, err := h.DB.Collection("doctorDetails").InsertOne(ctx, details); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create doctor details"})
		return
	}

	if _, err := h.DB.Collection("users").UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"doctorDetails": details.ID, "updatedAt": now}}); err != nil {
		log.Printf("Failed to backlink doctor details onto user %s: %v", userID.Hex(), err)
	}
	if !details.Hospital.IsZero() {
		if _, err := h.DB.Collection("hospitals").UpdateOne(ctx,
			bson.M{"_id": details.Hospital},
			bson.M{"$addToSet": bson.M{"doctors": userID}}); err != nil {
			log.Printf("Failed to add doctor %s to hospital %s: %v", userID.Hex(), details.Hospital.Hex(), err)
		}
	}

	c.JSON(http.StatusCreated, details)
}

func (h *Handler) ListDoctorDetails(c *gin.Context) {
	_, filter, ok := h.scopeFilter(c, authz.ResourceDoctorDetails)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if specialty := c.Query("specialty"); specialty != "" {
		filter["specialty"] = specialty
	}
	if hospital := c.Query("hospital"); hospital != "" {
		if hospitalID, err := primitive.ObjectIDFromHex(hospital); err == nil {
			filter["hospital"] = hospitalID
		}
	}

	cursor, err := h.DB.Collection("doctorDetails").Find(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve doctors"})
		return
	}
	defer cursor.Close(ctx)

	doctors := []models.DoctorDetails{}
	if err := cursor.All(ctx, &doctors); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode doctors"})
		return
	}
	c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctorDetails(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid doctor details id"})
		return
	}

	var details models.DoctorDetails
	err = h.DB.Collection("doctorDetails").FindOne(c.Request.Context(), bson.M{"_id": id}).Decode(&details)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Doctor details not found"})
		return
	}

	if !authz.CanAccess(p, authz.ResourceDoctorDetails, authz.Refs{Doctor: details.User, Hospital: details.Hospital}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this record"})
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) UpdateDoctorDetails(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid doctor details id"})
		return
	}
	ctx := c.Request.Context()

	var existing models.DoctorDetails
	err = h.DB.Collection("doctorDetails").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Doctor details not found"})
		return
	}
	// The doctor themselves, their hospital's admin, or an admin.
	allowed := p.Role == models.RoleAdmin ||
		(p.Role == models.RoleDoctor && existing.User == p.ID) ||
		(p.Role == models.RoleHospitalAdmin && !existing.Hospital.IsZero() && existing.Hospital == p.Hospital)
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this record"})
		return
	}

	var req doctorDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.Specialty != "" {
		set["specialty"] = req.Specialty
	}
	if req.Qualifications != nil {
		set["qualifications"] = req.Qualifications
	}
	if req.Schedule != nil {
		set["schedule"] = req.Schedule
	}
	if req.Hospital != "" {
		hospitalID, err := primitive.ObjectIDFromHex(req.Hospital)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
			return
		}
		if err := h.DB.Collection("hospitals").FindOne(ctx, bson.M{"_id": hospitalID}).Err(); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
			return
		}
		set["hospital"] = hospitalID
	}

	_, err = h.DB.Collection("doctorDetails").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update doctor details"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Doctor details updated"})
}

func (h *Handler) DeleteDoctorDetails(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid doctor details id"})
		return
	}
	ctx := c.Request.Context()

	var details models.DoctorDetails
	err = h.DB.Collection("doctorDetails").FindOne(ctx, bson.M{"_id": id}).Decode(&details)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Doctor details not found"})
		return
	}
	// An admin, or the admin of the hospital this profile belongs to.
	allowed := p.Role == models.RoleAdmin ||
		(p.Role == models.RoleHospitalAdmin && !details.Hospital.IsZero() && details.Hospital == p.Hospital)
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this record"})
		return
	}

	if _, err := h.DB.Collection("doctorDetails").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete doctor details"})
		return
	}
	if !details.Hospital.IsZero() {
		if _, err := h.DB.Collection("hospitals").UpdateOne(ctx,
			bson.M{"_id": details.Hospital},
			bson.M{"$pull": bson.M{"doctors": details.User}}); err != nil {
			log.Printf("Failed to remove doctor %s from hospital %s: %v", details.User.Hex(), details.Hospital.Hex(), err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Doctor details deleted"})
}
