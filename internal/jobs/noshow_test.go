package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/clinovia/hospital-api/internal/models"
)

func TestNoShowFilter(t *testing.T) {
	cutoff := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	filter := NoShowFilter(cutoff)

	statuses, ok := filter["status"].(bson.M)
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{models.AppointmentPending, models.AppointmentConfirmed}, statuses["$in"])

	date, ok := filter["appointmentDate"].(bson.M)
	assert.True(t, ok)
	assert.Equal(t, cutoff, date["$lt"])
}
