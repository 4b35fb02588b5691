package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/models"
)

// StartScheduler starts the background scheduler. The no-show sweep runs
// once an hour at minute zero.
func StartScheduler(db *mongo.Database, cfg *config.Config) *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("0 * * * *", func() {
		SweepNoShows(context.Background(), db, cfg.NoShowGrace)
	})
	if err != nil {
		log.Fatalf("Failed to add no-show cron job: %v", err)
	}
	c.Start()
	log.Println("Scheduler started: no-show sweep runs hourly")
	return c
}

// NoShowFilter matches appointments that were never attended: still pending
// or confirmed, with an appointment date older than the cutoff.
func NoShowFilter(cutoff time.Time) bson.M {
	return bson.M{
		"status":          bson.M{"$in": []string{models.AppointmentPending, models.AppointmentConfirmed}},
		"appointmentDate": bson.M{"$lt": cutoff},
	}
}

// SweepNoShows marks lapsed appointments as no-show. Grace is how long past
// the appointment date we wait before giving up on the patient.
func SweepNoShows(ctx context.Context, db *mongo.Database, grace time.Duration) {
	cutoff := time.Now().Add(-grace)

	res, err := db.Collection("appointments").UpdateMany(ctx,
		NoShowFilter(cutoff),
		bson.M{"$set": bson.M{
			"status":    models.AppointmentNoShow,
			"updatedAt": time.Now(),
		}},
	)
	if err != nil {
		log.Printf("No-show sweep failed: %v", err)
		return
	}
	if res.ModifiedCount > 0 {
		log.Printf("No-show sweep marked %d appointments", res.ModifiedCount)
	}
}
