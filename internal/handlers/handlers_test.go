package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asPrincipal injects the context keys AuthMiddleware would set.
func asPrincipal(id primitive.ObjectID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", id.Hex())
		c.Set("userRole", role)
		c.Next()
	}
}

func testHandler() *Handler {
	return &Handler{Cfg: &config.Config{DefaultCurrency: "USD"}}
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	assert.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLoginMissingFields(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := postJSON(t, r, "/auth/login", gin.H{"email": "pat@example.com"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Missing required fields", body["error"])
	assert.Equal(t, []interface{}{"password"}, body["fields"])
}

func TestCreateAppointmentMissingFields(t *testing.T) {
	h := testHandler()
	patient := primitive.NewObjectID()
	r := gin.New()
	r.POST("/appointments", asPrincipal(patient, models.RolePatient), h.CreateAppointment)

	w := postJSON(t, r, "/appointments", gin.H{"reason": "checkup"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Missing required fields", body["error"])
	// The patient field is filled from the caller, so it is never missing.
	assert.ElementsMatch(t,
		[]interface{}{"doctor", "hospital", "appointmentDate", "appointmentTime"},
		body["fields"])
}

func TestCreateAppointmentPatientMismatch(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/appointments", asPrincipal(primitive.NewObjectID(), models.RolePatient), h.CreateAppointment)

	w := postJSON(t, r, "/appointments", gin.H{"patient": primitive.NewObjectID().Hex()})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateAppointmentBadDate(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/appointments", asPrincipal(primitive.NewObjectID(), models.RoleAdmin), h.CreateAppointment)

	w := postJSON(t, r, "/appointments", gin.H{
		"patient":         primitive.NewObjectID().Hex(),
		"doctor":          primitive.NewObjectID().Hex(),
		"hospital":        primitive.NewObjectID().Hex(),
		"appointmentDate": "tomorrow",
		"appointmentTime": "10:30",
		"reason":          "checkup",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RFC3339")
}

func TestCreateAppointmentAsDoctorRejectsOthers(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/appointments/doctor", asPrincipal(primitive.NewObjectID(), models.RolePatient), h.CreateAppointmentAsDoctor)

	w := postJSON(t, r, "/appointments/doctor", gin.H{})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateAppointmentUnauthenticated(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/appointments", h.CreateAppointment)

	w := postJSON(t, r, "/appointments", gin.H{})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreatePaymentValidation(t *testing.T) {
	h := testHandler()
	r := gin.New()
	r.POST("/payments", h.CreatePayment)

	cases := []struct {
		name string
		body gin.H
		want string
	}{
		{"missing appointment", gin.H{"amount": 50.0}, "Missing required fields"},
		{"zero amount", gin.H{"appointment": primitive.NewObjectID().Hex()}, "greater than zero"},
		{"negative amount", gin.H{"appointment": primitive.NewObjectID().Hex(), "amount": -5.0}, "greater than zero"},
		{"bad type", gin.H{"appointment": primitive.NewObjectID().Hex(), "amount": 50.0, "paymentType": "barter"}, "Unknown payment type"},
		{"bad status", gin.H{"appointment": primitive.NewObjectID().Hex(), "amount": 50.0, "status": "maybe"}, "Unknown payment status"},
		{"bad id", gin.H{"appointment": "not-hex", "amount": 50.0}, "Invalid appointment id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, r, "/payments", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)
		})
	}
}
