package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/handlers"
	"github.com/clinovia/hospital-api/internal/jobs"
	"github.com/clinovia/hospital-api/internal/middleware"
	"github.com/clinovia/hospital-api/internal/models"
	"github.com/clinovia/hospital-api/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}
	cfg := config.Load()

	// --- Database Connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)
	db := client.Database(cfg.MongoDatabase)
	log.Println("Successfully connected to MongoDB!")

	ensureIndexes(ctx, db)

	// --- Token revocation store ---
	var tokens services.TokenStore
	if cfg.RedisAddr != "" {
		store := services.NewRedisTokenStore(cfg.RedisAddr)
		if err := store.Ping(ctx); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		tokens = store
		log.Println("Connected to Redis for token revocation")
	} else {
		log.Println("REDIS_ADDR not set, logout revocation disabled")
	}

	// --- Services ---
	mailer := services.NewMailer(cfg)
	verifier := services.NewLicenseVerifier(&services.TesseractExtractor{Binary: cfg.TesseractBin}, cfg.VerifyDelay)

	h := handlers.NewHandler(db, cfg, mailer, verifier, tokens)

	// --- Background jobs ---
	scheduler := jobs.StartScheduler(db, cfg)
	defer scheduler.Stop()

	// --- Gin Router ---
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))

	r.Static("/uploads", cfg.UploadDir)

	auth := middleware.AuthMiddleware(cfg.JWTSecret, tokens)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleHospitalAdmin)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	// --- Routes ---
	authRoutes := r.Group("/api/v1/auth")
	{
		authRoutes.POST("/login", h.Login)
		authRoutes.POST("/qr-login", h.QRLogin)
		authRoutes.POST("/logout", auth, h.Logout)
	}

	api := r.Group("/api/v1")
	api.Use(auth)
	{
		// Users
		api.POST("/users", staff, h.CreateUser)
		api.GET("/users", h.ListUsers)
		api.GET("/users/:id", h.GetUser)
		api.PUT("/users/:id", h.UpdateUser)
		api.DELETE("/users/:id", staff, h.DeleteUser)

		// Hospitals
		api.POST("/hospitals", adminOnly, h.CreateHospital)
		api.GET("/hospitals", h.ListHospitals)
		api.GET("/hospitals/:id", h.GetHospital)
		api.PUT("/hospitals/:id", staff, h.UpdateHospital)
		api.DELETE("/hospitals/:id", adminOnly, h.DeleteHospital)
		api.POST("/hospitals/:id/verify-license", staff, h.VerifyLicense)

		// Doctor details
		api.POST("/doctors", staff, h.CreateDoctorDetails)
		api.GET("/doctors", h.ListDoctorDetails)
		api.GET("/doctors/:id", h.GetDoctorDetails)
		api.PUT("/doctors/:id", h.UpdateDoctorDetails)
		api.DELETE("/doctors/:id", staff, h.DeleteDoctorDetails)

		// Patient histories
		api.POST("/patientHistories", staff, h.CreatePatientHistory)
		api.GET("/patientHistories", h.ListPatientHistories)
		api.GET("/patientHistories/:id", h.GetPatientHistory)
		api.PUT("/patientHistories/:id", h.UpdatePatientHistory)
		api.DELETE("/patientHistories/:id", adminOnly, h.DeletePatientHistory)
		// Identification lookups live under the singular prefix so the
		// static segments do not collide with the :id route above.
		api.POST("/patientHistory/scan", h.ScanPatientHistory)
		api.GET("/patientHistory/email/:email", h.GetPatientHistoryByEmail)
		api.GET("/patientHistory/doctor/:id", h.ListPatientHistoriesByDoctor)

		// Appointments
		api.POST("/appointments", h.CreateAppointment)
		api.POST("/appointments/doctor", h.CreateAppointmentAsDoctor)
		api.GET("/appointments", h.ListAppointments)
		api.GET("/appointments/:id", h.GetAppointment)
		api.PUT("/appointments/:id", h.UpdateAppointment)
		api.DELETE("/appointments/:id", h.DeleteAppointment)

		// Payments
		api.POST("/payments", h.CreatePayment)
		api.GET("/payments", h.ListPayments)
		api.GET("/payments/:id", h.GetPayment)
		api.PUT("/payments/:id", staff, h.UpdatePayment)
		api.DELETE("/payments/:id", adminOnly, h.DeletePayment)

		// Reports
		api.GET("/reports/finance", staff, h.FinanceReport)
		api.GET("/reports/patient-visits", staff, h.PatientVisitsReport)
		api.GET("/reports/patient-visits/debug", staff, h.PatientVisitsDebug)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Route not found"})
	})

	log.Printf("Starting server on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}

func ensureIndexes(ctx context.Context, db *mongo.Database) {
	unique := options.Index().SetUnique(true)
	idx := []struct {
		coll string
		keys bson.D
	}{
		{"users", bson.D{{Key: "email", Value: 1}}},
		{"hospitals", bson.D{{Key: "code", Value: 1}}},
	}
	for _, i := range idx {
		_, err := db.Collection(i.coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    i.keys,
			Options: unique,
		})
		if err != nil {
			log.Printf("Failed to create index on %s: %v", i.coll, err)
		}
	}
}
