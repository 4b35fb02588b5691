package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/models"
)

// asScopedPrincipal injects a caller that carries a hospital claim.
func asScopedPrincipal(id primitive.ObjectID, role string, hospital primitive.ObjectID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", id.Hex())
		c.Set("userRole", role)
		c.Set("userHospital", hospital.Hex())
		c.Next()
	}
}

func mockHandler(mt *mtest.T) *Handler {
	return &Handler{
		DB:  mt.Client.Database("hospital"),
		Cfg: &config.Config{DefaultCurrency: "USD"},
	}
}

func doDelete(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodDelete, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func findOneResponse(ns string, doc bson.D) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, doc)
}

func noDocsResponse(ns string) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch)
}

func TestDeleteAppointmentOwnership(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	aptID := primitive.NewObjectID()
	owner := primitive.NewObjectID()

	aptDoc := bson.D{
		{Key: "_id", Value: aptID},
		{Key: "patient", Value: owner},
		{Key: "doctor", Value: primitive.NewObjectID()},
		{Key: "hospital", Value: primitive.NewObjectID()},
		{Key: "status", Value: models.AppointmentPending},
	}

	mt.Run("another patient is refused", func(mt *mtest.T) {
		h := mockHandler(mt)
		r := gin.New()
		r.DELETE("/appointments/:id", asPrincipal(primitive.NewObjectID(), models.RolePatient), h.DeleteAppointment)

		mt.AddMockResponses(findOneResponse("hospital.appointments", aptDoc))

		w := doDelete(r, "/appointments/"+aptID.Hex())
		assert.Equal(mt, http.StatusForbidden, w.Code)
	})

	mt.Run("the owning patient may delete", func(mt *mtest.T) {
		h := mockHandler(mt)
		r := gin.New()
		r.DELETE("/appointments/:id", asPrincipal(owner, models.RolePatient), h.DeleteAppointment)

		mt.AddMockResponses(
			findOneResponse("hospital.appointments", aptDoc),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		w := doDelete(r, "/appointments/"+aptID.Hex())
		assert.Equal(mt, http.StatusOK, w.Code)
	})
}

func TestDeleteUserHospitalScope(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	userID := primitive.NewObjectID()
	theirHospital := primitive.NewObjectID()

	userDoc := bson.D{
		{Key: "_id", Value: userID},
		{Key: "role", Value: models.RoleDoctor},
		{Key: "hospital", Value: theirHospital},
	}

	mt.Run("another hospital's admin is refused", func(mt *mtest.T) {
		h := mockHandler(mt)
		r := gin.New()
		r.DELETE("/users/:id",
			asScopedPrincipal(primitive.NewObjectID(), models.RoleHospitalAdmin, primitive.NewObjectID()),
			h.DeleteUser)

		mt.AddMockResponses(findOneResponse("hospital.users", userDoc))

		w := doDelete(r, "/users/"+userID.Hex())
		assert.Equal(mt, http.StatusForbidden, w.Code)
	})

	mt.Run("the same hospital's admin may delete", func(mt *mtest.T) {
		h := mockHandler(mt)
		r := gin.New()
		r.DELETE("/users/:id",
			asScopedPrincipal(primitive.NewObjectID(), models.RoleHospitalAdmin, theirHospital),
			h.DeleteUser)

		mt.AddMockResponses(
			findOneResponse("hospital.users", userDoc),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}), // users delete
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}), // doctorDetails cascade
		)

		w := doDelete(r, "/users/"+userID.Hex())
		assert.Equal(mt, http.StatusOK, w.Code)
	})
}

func TestDeleteDoctorDetailsHospitalScope(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("another hospital's admin is refused", func(mt *mtest.T) {
		detailsID := primitive.NewObjectID()
		h := mockHandler(mt)
		r := gin.New()
		r.DELETE("/doctors/:id",
			asScopedPrincipal(primitive.NewObjectID(), models.RoleHospitalAdmin, primitive.NewObjectID()),
			h.DeleteDoctorDetails)

		mt.AddMockResponses(findOneResponse("hospital.doctorDetails", bson.D{
			{Key: "_id", Value: detailsID},
			{Key: "user", Value: primitive.NewObjectID()},
			{Key: "hospital", Value: primitive.NewObjectID()},
		}))

		w := doDelete(r, "/doctors/"+detailsID.Hex())
		assert.Equal(mt, http.StatusForbidden, w.Code)
	})
}

func TestUpdateAppointmentPaymentStatusValidation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("unknown payment status is rejected", func(mt *mtest.T) {
		aptID := primitive.NewObjectID()
		h := mockHandler(mt)
		r := gin.New()
		r.PUT("/appointments/:id", asPrincipal(primitive.NewObjectID(), models.RoleAdmin), h.UpdateAppointment)

		mt.AddMockResponses(findOneResponse("hospital.appointments", bson.D{
			{Key: "_id", Value: aptID},
			{Key: "patient", Value: primitive.NewObjectID()},
			{Key: "doctor", Value: primitive.NewObjectID()},
			{Key: "hospital", Value: primitive.NewObjectID()},
		}))

		raw := `{"paymentStatus":"comped"}`
		req := httptest.NewRequest(http.MethodPut, "/appointments/"+aptID.Hex(), strings.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(mt, http.StatusBadRequest, w.Code)
		assert.Contains(mt, w.Body.String(), "Unknown payment status")
	})
}

func TestCreateAppointmentHistoryAutoCreate(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	patientID := primitive.NewObjectID()
	doctorID := primitive.NewObjectID()
	hospitalID := primitive.NewObjectID()

	body := gin.H{
		"patient":         patientID.Hex(),
		"doctor":          doctorID.Hex(),
		"hospital":        hospitalID.Hex(),
		"appointmentDate": "2026-09-01T10:00:00Z",
		"appointmentTime": "10:00",
		"reason":          "checkup",
	}

	patientDoc := bson.D{
		{Key: "_id", Value: patientID},
		{Key: "role", Value: models.RolePatient},
		{Key: "email", Value: "pat@example.com"},
	}
	doctorDoc := bson.D{
		{Key: "_id", Value: doctorID},
		{Key: "role", Value: models.RoleDoctor},
	}
	hospitalDoc := bson.D{{Key: "_id", Value: hospitalID}}

	historyInserts := func(mt *mtest.T) int {
		n := 0
		for _, evt := range mt.GetAllStartedEvents() {
			if evt.CommandName == "insert" && evt.Command.Lookup("insert").StringValue() == "patientHistories" {
				n++
			}
		}
		return n
	}

	mt.Run("first booking creates exactly one history", func(mt *mtest.T) {
		h := mockHandler(mt)
		r := gin.New()
		r.POST("/appointments", asPrincipal(primitive.NewObjectID(), models.RoleAdmin), h.CreateAppointment)

		mt.AddMockResponses(
			findOneResponse("hospital.users", patientDoc),
			findOneResponse("hospital.users", doctorDoc),
			findOneResponse("hospital.hospitals", hospitalDoc),
			noDocsResponse("hospital.patientHistories"),
			mtest.CreateSuccessResponse(), // history insert
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}), // user backlink
			mtest.CreateSuccessResponse(), // appointment insert
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}), // history $addToSet
		)

		w := postJSON(mt.T, r, "/appointments", body)

		assert.Equal(mt, http.StatusCreated, w.Code)
		assert.Equal(mt, 1, historyInserts(mt), "exactly one history record is created")

		resp := decodeBody(mt.T, w)
		assert.NotEqual(mt, primitive.NilObjectID.Hex(), resp["patientHistory"])
	})

	mt.Run("existing history is reused", func(mt *mtest.T) {
		historyID := primitive.NewObjectID()
		h := mockHandler(mt)
		r := gin.New()
		r.POST("/appointments", asPrincipal(primitive.NewObjectID(), models.RoleAdmin), h.CreateAppointment)

		mt.AddMockResponses(
			findOneResponse("hospital.users", patientDoc),
			findOneResponse("hospital.users", doctorDoc),
			findOneResponse("hospital.hospitals", hospitalDoc),
			findOneResponse("hospital.patientHistories", bson.D{
				{Key: "_id", Value: historyID},
				{Key: "user", Value: patientID},
			}),
			mtest.CreateSuccessResponse(), // appointment insert
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}), // history $addToSet
		)

		w := postJSON(mt.T, r, "/appointments", body)

		assert.Equal(mt, http.StatusCreated, w.Code)
		assert.Equal(mt, 0, historyInserts(mt), "no new history when one exists")

		resp := decodeBody(mt.T, w)
		assert.Equal(mt, historyID.Hex(), resp["patientHistory"])
	})
}
