package handlers

import (
	"log"
	"net/http"
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

type appointmentRequest struct {
	Patient         string `json:"patient"`
	Doctor          string `json:"doctor"`
	Hospital        string `json:"hospital"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

// CreateAppointment books an appointment. A patient books for themselves;
// the patient field in the body must match the caller when present.
func (h *Handler) CreateAppointment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}

	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if p.Role == models.RolePatient {
		if req.Patient != "" && req.Patient != p.ID.Hex() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Patients may only book their own appointments"})
			return
		}
		req.Patient = p.ID.Hex()
	}

	h.createAppointment(c, req)
}

// CreateAppointmentAsDoctor is the doctor-initiated creation: the caller is
// the doctor, the patient comes from the body.
func (h *Handler) CreateAppointmentAsDoctor(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	if p.Role != models.RoleDoctor {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only doctors may use this endpoint"})
		return
	}

	var req appointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req.Doctor = p.ID.Hex()

	h.createAppointment(c, req)
}

func (h *Handler) createAppointment(c *gin.Context, req appointmentRequest) {
	if missing := utils.MissingFields(
		[]string{"patient", "doctor", "hospital", "appointmentDate", "appointmentTime", "reason"},
		map[string]string{
			"patient": req.Patient, "doctor": req.Doctor, "hospital": req.Hospital,
			"appointmentDate": req.AppointmentDate, "appointmentTime": req.AppointmentTime,
			"reason": req.Reason,
		}); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": missing})
		return
	}

	date, err := time.Parse(time.RFC3339, req.AppointmentDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointmentDate, use RFC3339"})
		return
	}

	patientID, err := primitive.ObjectIDFromHex(req.Patient)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid patient id"})
		return
	}
	doctorID, err := primitive.ObjectIDFromHex(req.Doctor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid doctor id"})
		return
	}
	hospitalID, err := primitive.ObjectIDFromHex(req.Hospital)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hospital id"})
		return
	}

	ctx := c.Request.Context()

	var patient models.User
	if err := h.DB.Collection("users").FindOne(ctx, bson.M{"_id": patientID, "role": models.RolePatient}).Decode(&patient); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Patient not found"})
		return
	}
	var doctor models.User
	if err := h.DB.Collection("users").FindOne(ctx, bson.M{"_id": doctorID, "role": models.RoleDoctor}).Decode(&doctor); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Doctor not found"})
		return
	}
	if err := h.DB.Collection("hospitals").FindOne(ctx, bson.M{"_id": hospitalID}).Err(); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Hospital not found"})
		return
	}

	now := time.Now()

	// First appointment for a patient without a history record creates one.
	var history models.PatientHistory
	err = h.DB.Collection("patientHistories").FindOne(ctx, bson.M{"user": patientID}).Decode(&history)
	if err == mongo.ErrNoDocuments {
		history = models.PatientHistory{
			ID:        primitive.NewObjectID(),
			User:      patientID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if qr, qrErr := services.GeneratePatientQR(services.QRPayload{
			HistoryID: history.ID.Hex(),
			UserID:    patientID.Hex(),
			Email:     patient.Email,
			IssuedAt:  now,
		}); qrErr == nil {
			history.QRCode = qr
		} else {
			log.Printf("Failed to generate QR for auto-created history %s: %v", history.ID.Hex(), qrErr)
		}
		if _, err := h.DB.Collection("patientHistories").InsertOne(ctx, history); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create patient history"})
			return
		}
		if _, err := h.DB.Collection("users").UpdateOne(ctx,
			bson.M{"_id": patientID},
			bson.M{"$set": bson.M{"patientHistory": history.ID, "updatedAt": now}}); err != nil {
			log.Printf("Failed to backlink auto-created history onto user %s: %v", patientID.Hex(), err)
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up patient history"})
		return
	}

	apt := models.Appointment{
		ID:              primitive.NewObjectID(),
		Patient:         patientID,
		PatientHistory:  history.ID,
		Doctor:          doctorID,
		Hospital:        hospitalID,
		AppointmentDate: date,
		AppointmentTime: req.AppointmentTime,
		Status:          models.AppointmentPending,
		Reason:          req.Reason,
		Notes:           req.Notes,
		PaymentStatus:   models.PaymentStatusUnpaid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !doctor.DoctorDetails.IsZero() {
		apt.DoctorDetails = doctor.DoctorDetails
	}

	if _, err := h.DB.Collection("appointments").InsertOne(ctx, apt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create appointment"})
		return
	}
	if _, err := h.DB.Collection("patientHistories").UpdateOne(ctx,
		bson.M{"_id": history.ID},
		bson.M{"$addToSet": bson.M{"appointments": apt.ID}}); err != nil {
		log.Printf("Failed to append appointment %s to history %s: %v", apt.ID.Hex(), history.ID.Hex(), err)
	}

	c.JSON(http.StatusCreated, apt)
}

// ListAppointments returns the appointments visible to the caller, with
// optional status and date-range query filters.
func (h *Handler) ListAppointments(c *gin.Context) {
	_, filter, ok := h.scopeFilter(c, authz.ResourceAppointment)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}
	if startStr := c.Query("startDate"); startStr != "" {
		if start, err := time.Parse("2006-01-02", startStr); err == nil {
			filter["appointmentDate"] = bson.M{"$gte": start}
		}
	}
	if endStr := c.Query("endDate"); endStr != "" {
		if end, err := time.Parse("2006-01-02", endStr); err == nil {
			end = end.Add(24*time.Hour - time.Millisecond)
			if f, ok := filter["appointmentDate"].(bson.M); ok {
				f["$lte"] = end
			} else {
				filter["appointmentDate"] = bson.M{"$lte": end}
			}
		}
	}

	cursor, err := h.DB.Collection("appointments").Find(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve appointments"})
		return
	}
	defer cursor.Close(ctx)

	appointments := []models.Appointment{}
	if err := cursor.All(ctx, &appointments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode appointments"})
		return
	}
	c.JSON(http.StatusOK, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment id"})
		return
	}

	var apt models.Appointment
	err = h.DB.Collection("appointments").FindOne(c.Request.Context(), bson.M{"_id": id}).Decode(&apt)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
		return
	}

	if !authz.CanAccess(p, authz.ResourceAppointment, authz.Refs{
		Patient: apt.Patient, Doctor: apt.Doctor, Hospital: apt.Hospital,
	}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this appointment"})
		return
	}
	c.JSON(http.StatusOK, apt)
}

// UpdateAppointment merges the supplied fields into the appointment. Status
// changes (confirm, complete, cancel) go through here.
func (h *Handler) UpdateAppointment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment id"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Appointment
	err = h.DB.Collection("appointments").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
		return
	}
	if !authz.CanAccess(p, authz.ResourceAppointment, authz.Refs{
		Patient: existing.Patient, Doctor: existing.Doctor, Hospital: existing.Hospital,
	}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this appointment"})
		return
	}

	var req struct {
		AppointmentDate string `json:"appointmentDate"`
		AppointmentTime string `json:"appointmentTime"`
		Status          string `json:"status"`
		Reason          string `json:"reason"`
		Notes           string `json:"notes"`
		PaymentStatus   string `json:"paymentStatus"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.AppointmentDate != "" {
		date, err := time.Parse(time.RFC3339, req.AppointmentDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointmentDate, use RFC3339"})
			return
		}
		set["appointmentDate"] = date
	}
	if req.AppointmentTime != "" {
		set["appointmentTime"] = req.AppointmentTime
	}
	if req.Status != "" {
		if !models.ValidAppointmentStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status: " + req.Status})
			return
		}
		set["status"] = req.Status
	}
	if req.Reason != "" {
		set["reason"] = req.Reason
	}
	if req.Notes != "" {
		set["notes"] = req.Notes
	}
	if req.PaymentStatus != "" {
		if !models.ValidAppointmentPaymentStatus(req.PaymentStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment status: " + req.PaymentStatus})
			return
		}
		set["paymentStatus"] = req.PaymentStatus
	}

	_, err = h.DB.Collection("appointments").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update appointment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Appointment updated"})
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment id"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Appointment
	err = h.DB.Collection("appointments").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
		return
	}
	if !authz.CanAccess(p, authz.ResourceAppointment, authz.Refs{
		Patient: existing.Patient, Doctor: existing.Doctor, Hospital: existing.Hospital,
	}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this appointment"})
		return
	}

	if _, err := h.DB.Collection("appointments").DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete appointment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Appointment deleted"})
}
