package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-sourced setting. It is loaded once in main
// and passed by reference to the handler set; nothing reads the environment
// after startup.
type Config struct {
	Port          string
	MongoURI      string
	MongoDatabase string

	JWTSecret  []byte
	TokenTTL   time.Duration
	BcryptCost int

	RedisAddr string

	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	UploadDir string

	TesseractBin string
	VerifyDelay  time.Duration

	DefaultCurrency string
	NoShowGrace     time.Duration
}

// Load reads the configuration from the environment. Callers are expected to
// have run godotenv.Load first if a .env file is in play.
func Load() *Config {
	cfg := &Config{
		Port:            getenv("API_PORT", "8080"),
		MongoURI:        getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getenv("MONGO_DATABASE", "clinovia"),
		JWTSecret:       []byte(os.Getenv("JWT_SECRET")),
		TokenTTL:        getduration("TOKEN_TTL", 24*time.Hour),
		BcryptCost:      getint("BCRYPT_COST", 14),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        getint("SMTP_PORT", 587),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
		EmailFrom:       getenv("EMAIL_FROM", os.Getenv("SMTP_USER")),
		UploadDir:       getenv("UPLOAD_DIR", "uploads"),
		TesseractBin:    getenv("TESSERACT_BIN", "tesseract"),
		VerifyDelay:     getduration("VERIFY_DELAY", 2*time.Second),
		DefaultCurrency: getenv("DEFAULT_CURRENCY", "USD"),
		NoShowGrace:     getduration("NO_SHOW_GRACE", 24*time.Hour),
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
