package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clinovia/hospital-api/internal/authz"
	"github.com/clinovia/hospital-api/internal/models"
)

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2023-10-01", "2023-10-01")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2023, 10, 1, 23, 59, 59, 999_000_000, time.UTC), end)
}

func TestDayBounds_OpenEnded(t *testing.T) {
	start, end, err := DayBounds("2023-10-01", "")
	require.NoError(t, err)
	assert.False(t, start.IsZero())
	assert.True(t, end.IsZero())

	start, end, err = DayBounds("", "")
	require.NoError(t, err)
	assert.True(t, start.IsZero())
	assert.True(t, end.IsZero())
}

func TestDayBounds_Invalid(t *testing.T) {
	_, _, err := DayBounds("01/10/2023", "")
	assert.Error(t, err)
	_, _, err = DayBounds("", "yesterday")
	assert.Error(t, err)
}

func TestResolveReportHospital(t *testing.T) {
	hosp := primitive.NewObjectID()
	other := primitive.NewObjectID()

	// Explicit parameter wins for everyone.
	got, err := ResolveReportHospital(authz.Principal{Role: models.RoleAdmin}, other.Hex())
	require.NoError(t, err)
	assert.Equal(t, other, got)

	// Hospital admin falls back to their own hospital.
	got, err = ResolveReportHospital(authz.Principal{Role: models.RoleHospitalAdmin, Hospital: hosp}, "")
	require.NoError(t, err)
	assert.Equal(t, hosp, got)

	// Hospital admin with no linked hospital is rejected.
	_, err = ResolveReportHospital(authz.Principal{Role: models.RoleHospitalAdmin}, "")
	assert.ErrorIs(t, err, authz.ErrNoHospital)

	// Admin runs unrestricted.
	got, err = ResolveReportHospital(authz.Principal{Role: models.RoleAdmin}, "")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	// Everyone else has no business here.
	_, err = ResolveReportHospital(authz.Principal{Role: models.RolePatient}, "")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	_, err = ResolveReportHospital(authz.Principal{Role: models.RoleAdmin}, "not-an-id")
	assert.Error(t, err)
}

func TestFinancePipeline_MatchStage(t *testing.T) {
	hosp := primitive.NewObjectID()
	start := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 10, 31, 23, 59, 59, 999_000_000, time.UTC)

	pipeline := FinancePipeline(hosp, start, end)
	require.Len(t, pipeline, 2)

	match := pipeline[0]["$match"].(bson.M)
	assert.Equal(t, hosp, match["hospital"])
	assert.Equal(t, bson.M{"$gte": start, "$lte": end}, match["createdAt"])

	facet := pipeline[1]["$facet"].(bson.M)
	for _, key := range []string{"byStatus", "byType", "byDay", "byDoctor", "overall"} {
		assert.Contains(t, facet, key)
	}

	// The grand total only counts paid payments.
	overall := facet["overall"].([]bson.M)
	assert.Equal(t, bson.M{"$match": bson.M{"status": models.PaymentPaid}}, overall[0])
}

func TestFinancePipeline_Unrestricted(t *testing.T) {
	pipeline := FinancePipeline(primitive.NilObjectID, time.Time{}, time.Time{})
	match := pipeline[0]["$match"].(bson.M)
	assert.Empty(t, match)
}

func TestVisitsPipeline_Shape(t *testing.T) {
	hosp := primitive.NewObjectID()
	start := time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 10, 1, 23, 59, 59, 999_000_000, time.UTC)

	pipeline := VisitsPipeline(hosp, start, end)
	require.Len(t, pipeline, 4)

	assert.Equal(t, bson.M{"hospital": hosp}, pipeline[0]["$match"])

	fields := pipeline[1]["$addFields"].(bson.M)
	assert.Contains(t, fields, "normStatus")
	assert.Contains(t, fields, "visitDate")

	// Date filtering happens on the derived visit date.
	assert.Equal(t, bson.M{"visitDate": bson.M{"$gte": start, "$lte": end}}, pipeline[2]["$match"])

	facet := pipeline[3]["$facet"].(bson.M)
	for _, key := range []string{"byStatus", "byDay", "byDoctor", "overall"} {
		assert.Contains(t, facet, key)
	}

	// Only normalized-completed appointments count as visits.
	overall := facet["overall"].([]bson.M)
	assert.Equal(t, bson.M{"$match": bson.M{"normStatus": models.AppointmentCompleted}}, overall[0])
}

func TestVisitsPipeline_NoFilters(t *testing.T) {
	pipeline := VisitsPipeline(primitive.NilObjectID, time.Time{}, time.Time{})
	require.Len(t, pipeline, 2)
	assert.Contains(t, pipeline[0], "$addFields")
	assert.Contains(t, pipeline[1], "$facet")
}
