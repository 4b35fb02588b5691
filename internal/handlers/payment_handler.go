package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/utils"
)

type paymentRequest struct {
	Appointment   string  `json:"appointment"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentType   string  `json:"paymentType"`
	Status        string  `json:"status"`
	TransactionID string  `json:"transactionId"`
	Provider      string  `json:"provider"`
	Notes         string  `json:"notes"`
}

// CreatePayment records a payment against an existing appointment. The
// patient, doctor and hospital references are taken from the appointment.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if missing := utils.MissingFields([]string{"appointment"}, map[string]string{
		"appointment": req.Appointment,
	}); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": missing})
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be greater than zero"})
		return
	}
	if req.PaymentType != "" && !models.ValidPaymentType(req.PaymentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment type: " + req.PaymentType})
		return
	}
	if req.Status != "" && !models.ValidPaymentStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment status: " + req.Status})
		return
	}

	aptID, err := primitive.ObjectIDFromHex(req.Appointment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid appointment id"})
		return
	}
	ctx := c.Request.Context()

	var apt models.Appointment
	err = h.DB.Collection("appointments").FindOne(ctx, bson.M{"_id": aptID}).Decode(&apt)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
		return
	}

	now := time.Now()
	payment := models.Payment{
		ID:            primitive.NewObjectID(),
		Patient:       apt.Patient,
		Appointment:   apt.ID,
		Hospital:      apt.Hospital,
		Doctor:        apt.Doctor,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentType:   req.PaymentType,
		Status:        req.Status,
		TransactionID: req.TransactionID,
		Provider:      req.Provider,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if payment.Currency == "" {
		payment.Currency = h.Cfg.DefaultCurrency
	}
	if payment.PaymentType == "" {
		payment.PaymentType = models.PaymentTypeOther
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}
	if payment.TransactionID == "" {
		payment.TransactionID = uuid.NewString()
	}

	if _, err := h.DB.Collection("payments").InsertOne(ctx, payment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create payment"})
		return
	}

	if payment.Status == models.PaymentPaid {
		h.markAppointmentPaid(c, apt.ID)
	}

	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) ListPayments(c *gin.Context) {
	_, filter, ok := h.scopeFilter(c, authz.ResourcePayment)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if status := c.Query("status"); status != "" {
		filter["status"] = status
	}

	cursor, err := h.DB.Collection("payments").Find(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve payments"})
		return
	}
	defer cursor.Close(ctx)

	payments := []models.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode payments"})
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) GetPayment(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
		return
	}

	var payment models.Payment
	err = h.DB.Collection("payments").FindOne(c.Request.Context(), bson.M{"_id": id}).Decode(&payment)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	if !authz.CanAccess(p, authz.ResourcePayment, authz.Refs{
		Patient: payment.Patient, Doctor: payment.Doctor, Hospital: payment.Hospital,
	}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have access to this payment"})
		return
	}
	c.JSON(http.StatusOK, payment)
}

// UpdatePayment merges supplied fields; moving a payment to "paid" mirrors
// onto the appointment's paymentStatus.
func (h *Handler) UpdatePayment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
		return
	}
	ctx := c.Request.Context()

	var existing models.Payment
	err = h.DB.Collection("payments").FindOne(ctx, bson.M{"_id": id}).Decode(&existing)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Amount < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be greater than zero"})
		return
	}
	if req.Status != "" && !models.ValidPaymentStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment status: " + req.Status})
		return
	}
	if req.PaymentType != "" && !models.ValidPaymentType(req.PaymentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment type: " + req.PaymentType})
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.Amount > 0 {
		set["amount"] = req.Amount
	}
	if req.Currency != "" {
		set["currency"] = req.Currency
	}
	if req.PaymentType != "" {
		set["paymentType"] = req.PaymentType
	}
	if req.Status != "" {
		set["status"] = req.Status
	}
	if req.TransactionID != "" {
		set["transactionId"] = req.TransactionID
	}
	if req.Provider != "" {
		set["provider"] = req.Provider
	}
	if req.Notes != "" {
		set["notes"] = req.Notes
	}

	_, err = h.DB.Collection("payments").UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update payment"})
		return
	}

	if req.Status == models.PaymentPaid {
		h.markAppointmentPaid(c, existing.Appointment)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment updated"})
}

func (h *Handler) DeletePayment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment id"})
		return
	}

	result, err := h.DB.Collection("payments").DeleteOne(c.Request.Context(), bson.M{"_id": id})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete payment"})
		return
	}
	if result.DeletedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted"})
}

func (h *Handler) markAppointmentPaid(c *gin.Context, aptID primitive.ObjectID) {
	_, err := h.DB.Collection("appointments").UpdateOne(c.Request.Context(),
		bson.M{"_id": aptID},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentStatusPaid}})
	if err != nil {
		log.Printf("Failed to mirror paid status onto appointment %s: %v", aptID.Hex(), err)
	}
}
