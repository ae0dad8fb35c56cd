package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode   `validate:"oneof=offline online"`
	HTTPAddr string `validate:"required"`

	DBDriver string `validate:"oneof=sqlite postgres"`
	DBDSN    string

	// RecordBackend selects where city records live: sql|mongo|memory.
	// Users and submission history always use the SQL database.
	RecordBackend string `validate:"oneof=sql mongo memory"`
	MongoURI      string `validate:"required_if=RecordBackend mongo"`
	MongoDatabase string `validate:"required_if=RecordBackend mongo"`

	AuthHMACSecret string        `validate:"required,min=16"`
	TokenTTL       time.Duration `validate:"gt=0"`

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOrigins []string

	SubmitRatePerSec float64 `validate:"gte=0"`
	SubmitBurst      int     `validate:"gte=1"`

	StoreBreaker        bool
	StoreBreakerTimeout time.Duration `validate:"gte=0"`

	// BlobBasePath holds exported report snapshots; empty disables them.
	BlobBasePath string
}

var validate = validator.New()

// Load reads a .env file when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	defOrigins := "http://localhost:3000,http://localhost:5173"
	if mode == ModeOnline {
		defOrigins = ""
	}
	// the offline default secret is only good for local use
	defSecret := ""
	if mode == ModeOffline {
		defSecret = "dev-secret-change-me-please"
	}
	return Config{
		Mode:           mode,
		HTTPAddr:       envOr("HTTP_ADDR", ":8080"),
		DBDriver:       envOr("DB_DRIVER", "sqlite"),
		DBDSN:          envOr("DB_DSN", ""),
		RecordBackend:  envOr("RECORD_BACKEND", "sql"),
		MongoURI:       envOr("MONGO_URI", ""),
		MongoDatabase:  envOr("MONGO_DATABASE", "cityprosperity"),
		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", defSecret),
		TokenTTL:       envDuration("TOKEN_TTL", 8*time.Hour),
		AdminUser:      envOr("ADMIN_USER", "admin"),
		AdminPassHash:  envOr("ADMIN_PASS_HASH", ""),
		CORSOrigins:    csvOr("CORS_ORIGINS", defOrigins),

		SubmitRatePerSec: envFloat("SUBMIT_RATE_PER_SEC", 2),
		SubmitBurst:      envInt("SUBMIT_BURST", 10),

		StoreBreaker:        envBool("STORE_BREAKER", true),
		StoreBreakerTimeout: envDuration("STORE_BREAKER_TIMEOUT", 30*time.Second),

		BlobBasePath: envOr("BLOB_BASE_PATH", "./data"),
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return def
}
func envDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return d
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
