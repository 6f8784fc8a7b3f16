package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Settings holds the runtime configuration read from the environment.
type Settings struct {
	Port      string
	UploadDir string
	LogFile   string
	JWTSecret string

	// CORSAllowedOrigins lists the origins that may call the API with
	// credentials. Empty means same-origin only.
	CORSAllowedOrigins []string

	DBDriver   string // "postgres" or "sqlite"
	SQLitePath string

	MaxPhotos      int
	MaxUploadBytes int64

	ThumbMaxWidth  int
	ThumbMaxHeight int
	ThumbQuality   int
	ThumbMaxPixels int64
}

// DefaultJWTSecret is the development fallback for JWT_SECRET.
const DefaultJWTSecret = "supersecret"

// UsingDefaultSecret reports whether sessions and CSRF tokens are signed with
// the development fallback.
func (s Settings) UsingDefaultSecret() bool {
	return s.JWTSecret == DefaultJWTSecret
}

// LoadSettings loads .env (if present) and reads every setting with its default.
func LoadSettings() Settings {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	return Settings{
		Port:      getEnv("PORT", "8080"),
		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
		LogFile:   getEnv("LOG_FILE", "./logs/app.log"),
		JWTSecret: getEnv("JWT_SECRET", DefaultJWTSecret),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		SQLitePath: getEnv("SQLITE_PATH", "./drive_mapping.db"),

		MaxPhotos:      getEnvInt("MAX_PHOTOS", 10),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		ThumbMaxWidth:  getEnvInt("THUMB_MAX_WIDTH", 360),
		ThumbMaxHeight: getEnvInt("THUMB_MAX_HEIGHT", 270),
		ThumbQuality:   getEnvInt("THUMB_QUALITY", 82),
		ThumbMaxPixels: int64(getEnvInt("THUMB_MAX_PIXELS", 50_000_000)),
	}
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, exists := os.LookupEnv(key)
	if !exists || v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
