package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/services"
	"github.com/clinovia/hospital-api/internal/utils"
)

type patientHistoryRequest struct {
	User           string                `json:"user"`
	MedicalHistory []models.MedicalEntry `json:"medicalHistory"`
	TestResults    []models.TestResult   `json:"testResults"`
	Allergies      []string              `json:"allergies"`
	BloodGroup     string                `json:"bloodGroup"`
}

// CreatePatientHistory attaches a clinical record to an existing patient
// user. A patient carries exactly one history.
func (h *Handler) CreatePatientHistory(c *gin.Context) {
	var req patientHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if missing := utils.MissingFields([]string{"user"}, map[string]string{"user": req.User}); len(missing) > 0 {
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
	if user.Role != models.RolePatient {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Referenced user is not a patient"})
		return
	}

	count, err := h.DB.Collection("patientHistories").CountDocuments(ctx, bson.M{"user": userID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing history"})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A history already exists for this patient"})
		return
	}

	now := time.Now()
	history := models.PatientHistory{
		ID:             primitive.NewObjectID(),
		User:           userID,
		MedicalHistory: req.MedicalHistory,
		TestResults:    req.TestResults,
		Allergies:      req.Allergies,
		BloodGroup:     req.BloodGroup,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	qr, err := services.GeneratePatientQR(services.QRPayload{
		HistoryID: history.ID.Hex(),
		UserID:    userID.Hex(),
		Email:     user.Email,
		IssuedAt:  now,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
		return
	}
	history.QRCode = qr

	if _, err := h.DB.Collection("patientHistories").InsertOne(ctx, history); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create patient history"})
		return
	}
	if _, err := h.DB.Collection("users").UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"patientHistory": history.ID, "updatedAt": now}}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link history to user"})
		return
	}

	c.JSON(http.StatusCreated, history)
}

func (h *Handler) ListPatientHistories(c *gin.Context) {
	_, filter, ok := h.scopeFilter(c, authz.ResourcePatientHistory)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	cursor, err := h.DB.Collection("patientHistories").Find(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve histories"})
		return
	}
	defer cursor.Close(ctx)

	histories := []models.PatientHistory{}
	if err := cursor.All(ctx, &histories); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode histories"})
		return
	}
	c.JSON(http.StatusOK, histories)
}

func (h *Handler) GetPatientHistory(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid history id"})
		return
	}

	var history models.PatientHistory
	err = h.DB.Collection("patientHistories").FindOne(c.Request.Context(), bson.M{"_id": id}).Decode(&history)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Patient history not found"})
		return
	}

	if !authz.CanAccess(p, authz.ResourcePatientHistory, authz.Refs{Patient: history.User}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) UpdatePatientHistory(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid history id"})
		return
	}
	ctx := c.Request.Context()

	var existing models.PatientHistory
	err = h.DB.Collection("patientHistories").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Patient history not found"})
		return
	}
	// Clinical staff update histories; the owning patient may not edit their
	// own clinical record, only read it.
	if p.Role != models.RoleAdmin && p.Role != models.RoleDoctor {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this history"})
		return
	}

	var req patientHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.MedicalHistory != nil {
		set["medicalHistory"] = req.MedicalHistory
	}
	if req.TestResults != nil {
		set["testResults"] = req.TestResults
	}
	if req.Allergies != nil {
		set["allergies"] = req.Allergies
	}
	if req.BloodGroup != "" {
		set["bloodGroup"] = req.BloodGroup
	}

	_, err = h.DB.Collection("patientHistories").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Patient history updated"})
}

func (h *Handler) DeletePatientHistory(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid history id"})
		return
	}

	result, err := h.DB.Collection("patientHistories").DeleteOne(c.Request.Context(), bson.M{"_id": id})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete history"})
		return
	}
	if result.DeletedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Patient history not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Patient history deleted"})
}

// ScanPatientHistory resolves a scanned QR payload to the patient's history.
// Staff use this at reception to identify a patient.
func (h *Handler) ScanPatientHistory(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	var req struct {
		Data string `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Data == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing QR payload"})
		return
	}

	payload, err := services.ParseQRPayload(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unrecognized QR payload"})
		return
	}
	historyID, err := primitive.ObjectIDFromHex(payload.HistoryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unrecognized QR payload"})
		return
	}

	var history models.PatientHistory
	err = h.DB.Collection("patientHistories").FindOne(c.Request.Context(), bson.M{"_id": historyID}).Decode(&history)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Patient history not found"})
		return
	}

	if !h.canIdentifyPatient(p, history.User) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetPatientHistoryByEmail resolves a patient email to their history.
func (h *Handler) GetPatientHistoryByEmail(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	email := c.Param("email")
	ctx := c.Request.Context()

	var user models.User
	err := h.DB.Collection("users").FindOne(ctx, bson.M{"email": email, "role": models.RolePatient}).Decode(&user)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No patient with this email"})
		return
	}

	var history models.PatientHistory
	err = h.DB.Collection("patientHistories").FindOne(ctx, bson.M{"user": user.ID}).Decode(&history)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Patient history not found"})
		return
	}

	if !h.canIdentifyPatient(p, history.User) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this history"})
		return
	}
	c.JSON(http.StatusOK, history)
}

// ListPatientHistoriesByDoctor returns the histories of every patient who has
// an appointment with the given doctor.
func (h *Handler) ListPatientHistoriesByDoctor(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	doctorID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid doctor id"})
		return
	}
	// Doctors may only ask for their own patient list.
	if p.Role == models.RoleDoctor && p.ID != doctorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this doctor's patients"})
		return
	}
	if p.Role == models.RolePatient {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this doctor's patients"})
		return
	}
	ctx := c.Request.Context()

	patientIDs, err := h.DB.Collection("appointments").Distinct(ctx, "patient", bson.M{"doctor": doctorID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve the doctor's patients"})
		return
	}
	if len(patientIDs) == 0 {
		c.JSON(http.StatusOK, []models.PatientHistory{})
		return
	}

	cursor, err := h.DB.Collection("patientHistories").Find(ctx, bson.M{"user": bson.M{"$in": patientIDs}})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve histories"})
		return
	}
	defer cursor.Close(ctx)

	histories := []models.PatientHistory{}
	if err := cursor.All(ctx, &histories); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode histories"})
		return
	}
	c.JSON(http.StatusOK, histories)
}

// canIdentifyPatient covers the identification flows (QR scan, email lookup):
// clinical staff and admins may identify any patient, a patient only
// themselves.
func (h *Handler) canIdentifyPatient(p authz.Principal, patient primitive.ObjectID) bool {
	switch p.Role {
	case models.RoleAdmin, models.RoleDoctor, models.RoleHospitalAdmin:
		return true
	case models.RolePatient:
		return p.ID == patient
	}
	return false
}
