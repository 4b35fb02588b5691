package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/services"
	"github.com/clinovia/hospital-api/internal/utils"
)

// Login exchanges email + password for a Bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if missing := utils.MissingFields([]string{"email", "password"}, map[string]string{
		"email": req.Email, "password": req.Password,
	}); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields", "fields": missing})
		return
	}

	var user models.User
	err := h.DB.Collection("users").FindOne(c.Request.Context(), bson.M{"email": req.Email}).Decode(&user)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.issueToken(c, &user)
}

// QRLogin authenticates a patient from the decoded text of their QR code.
// The scanning client posts the raw decoded payload.
func (h *Handler) QRLogin(c *gin.Context) {
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

	userID, err := primitive.ObjectIDFromHex(payload.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unrecognized QR payload"})
		return
	}

	var user models.User
	err = h.DB.Collection("users").FindOne(c.Request.Context(), bson.M{
		"_id":   userID,
		"email": payload.Email,
		"role":  models.RolePatient,
	}).Decode(&user)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No patient matches this QR code"})
		return
	}

	// The code must belong to the patient's current history record.
	if payload.HistoryID != "" && user.PatientHistory.Hex() != payload.HistoryID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "QR code is no longer valid"})
		return
	}

	h.issueToken(c, &user)
}

// Logout revokes the presented token until its natural expiry.
func (h *Handler) Logout(c *gin.Context) {
	jti, _ := c.Get("tokenID")
	expiry, _ := c.Get("tokenExpiresAt")

	jtiStr, _ := jti.(string)
	expiresAt, _ := expiry.(time.Time)
	if jtiStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token cannot be revoked"})
		return
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Tokens without an expiry are held for a full TTL window.
		ttl = h.Cfg.TokenTTL
	}
	if h.Tokens != nil {
		if err := h.Tokens.Revoke(c.Request.Context(), jtiStr, ttl); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke token"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) issueToken(c *gin.Context, user *models.User) {
	hospital := ""
	if !user.Hospital.IsZero() {
		hospital = user.Hospital.Hex()
	}
	token, err := utils.GenerateJWT(h.Cfg.JWTSecret, user.ID.Hex(), user.Role, hospital, h.Cfg.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not generate token"})
		return
	}

	user.Password = ""
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
