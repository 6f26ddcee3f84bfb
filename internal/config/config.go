package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	AppEnv        string
	Port          string
	LivePort      string
	CORSOrigins   string
	PublicBaseURL string

	// Domain
	CatalogPath             string
	Timezone                string
	PointsPerVerifiedReport int

	// Media storage
	StorageDriver       string
	UploadDir           string
	MaxUploadMB         int
	S3Bucket            string
	S3Region            string
	S3Endpoint          string
	S3AccessKeyID       string
	S3SecretAccessKey   string
	S3PublicURL         string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	// Cache
	RedisURL            string
	LeaderboardCacheTTL time.Duration

	// Notifications
	TelegramBotToken    string
	TelegramAdminChatID int64

	// Observability
	SentryDSN        string
	TracingEnabled   bool
	OTelExporter     string
	OTelEndpoint     string
	OTelSamplingRate float64
	LogRetentionDays int
	LogLevel         string
}

func Load() *Config {
	return &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "cleanup_ghent"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "cleanup.db"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		LivePort:      getEnv("LIVE_PORT", "8081"),
		CORSOrigins:   getEnv("CORS_ORIGINS", "*"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		CatalogPath:             getEnv("CATALOG_PATH", "catalog.yaml"),
		Timezone:                getEnv("TIMEZONE", "Europe/Brussels"),
		PointsPerVerifiedReport: getEnvInt("POINTS_PER_VERIFIED_REPORT", 10),

		StorageDriver:       getEnv("STORAGE_DRIVER", "local"),
		UploadDir:           getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadMB:         getEnvInt("MAX_UPLOAD_MB", 50),
		S3Bucket:            getEnv("S3_BUCKET", "trash-images"),
		S3Region:            getEnv("S3_REGION", "eu-west-1"),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:       getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:   getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3PublicURL:         getEnv("S3_PUBLIC_URL", ""),
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    getEnv("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: getEnv("CLOUDINARY_API_SECRET", ""),

		RedisURL:            getEnv("REDIS_URL", ""),
		LeaderboardCacheTTL: parseDuration(getEnv("LEADERBOARD_CACHE_TTL", "30s"), 30*time.Second),

		TelegramBotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminChatID: getEnvInt64("TELEGRAM_ADMIN_CHAT_ID", 0),

		SentryDSN:        getEnv("SENTRY_DSN", ""),
		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		OTelExporter:     getEnv("OTEL_EXPORTER", "otlp-http"),
		OTelEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),
		LogRetentionDays: getEnvInt("LOG_RETENTION_DAYS", 30),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every setting the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.AppEnv == "production" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	switch c.DBDriver {
	case "postgres":
		if c.DBPassword == "" && c.AppEnv == "production" {
			errs = append(errs, errors.New("DB_PASSWORD is required in production"))
		}
	case "sqlite":
	default:
		errs = append(errs, errors.New("DB_DRIVER must be postgres or sqlite"))
	}
	switch c.StorageDriver {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 storage driver"))
		}
	case "cloudinary":
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			errs = append(errs, errors.New("CLOUDINARY_* credentials are required for the cloudinary storage driver"))
		}
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER must be local, s3 or cloudinary"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, errors.New("TIMEZONE is not a valid IANA zone"))
	}
	return errors.Join(errs...)
}

// Location is the zone used for daily and weekly challenge periods.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	n, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	return email != "" && contains(parseCSV(c.AdminEmails), strings.ToLower(email))
}

// IsAdminUserID reports whether id is listed in ADMIN_USER_IDS.
func (c *Config) IsAdminUserID(id string) bool {
	return id != "" && contains(parseCSV(c.AdminUserIDs), strings.ToLower(id))
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(p))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
