package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ProductName is the default watermark text and PDF producer.
const ProductName = "DocMatic"

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Quota       QuotaConfig
	Watermark   WatermarkConfig
	Capture     CaptureConfig
	Export      ExportConfig
	Summary     SummaryConfig
	OCR         OCRConfig
	Widget      WidgetConfig
	Lock        LockConfig
	Documents   DocumentsConfig
	Entitlement EntitlementConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig configures session tokens.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// QuotaConfig holds the free-tier policy.
type QuotaConfig struct {
	FreeLimit int
	TimeZone  string
}

// WatermarkConfig controls the overlay applied to unlicensed pages.
type WatermarkConfig struct {
	Text      string
	LogoPath  string
	Alpha     float64
	FontScale float64
}

// CaptureConfig governs page encoding and the capture worker pool.
type CaptureConfig struct {
	ScanQuality    float64
	ImportQuality  float64
	ImportDPI      float64
	MaxUploadBytes int64
	Workers        int
	QueueSize      int
}

// ExportConfig configures transient PDF artifacts and their share links.
type ExportConfig struct {
	ScratchDir      string
	ArtifactTTL     time.Duration
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// SummaryConfig configures the Vertex AI summarizer.
type SummaryConfig struct {
	Enabled     bool
	ProjectID   string
	Region      string
	Model       string
	TargetWords int
	Length      string
}

type OCRConfig struct {
	Languages []string
}

// WidgetConfig configures where the widget snapshot is published.
type WidgetConfig struct {
	RedisKey     string
	Channel      string
	SnapshotFile string
}

type LockConfig struct {
	PasscodeHash string
}

type DocumentsConfig struct {
	DeletionDelay time.Duration
}

type EntitlementConfig struct {
	Premium bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Quota = QuotaConfig{
		FreeLimit: v.GetInt("QUOTA_FREE_LIMIT"),
		TimeZone:  v.GetString("QUOTA_TIME_ZONE"),
	}

	cfg.Watermark = WatermarkConfig{
		Text:      v.GetString("WATERMARK_TEXT"),
		LogoPath:  v.GetString("WATERMARK_LOGO_PATH"),
		Alpha:     v.GetFloat64("WATERMARK_ALPHA"),
		FontScale: v.GetFloat64("WATERMARK_FONT_SCALE"),
	}

	maxUpload := v.GetInt64("CAPTURE_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 64 * 1024 * 1024
	}
	cfg.Capture = CaptureConfig{
		ScanQuality:    v.GetFloat64("CAPTURE_SCAN_QUALITY"),
		ImportQuality:  v.GetFloat64("CAPTURE_IMPORT_QUALITY"),
		ImportDPI:      v.GetFloat64("CAPTURE_IMPORT_DPI"),
		MaxUploadBytes: maxUpload,
		Workers:        v.GetInt("CAPTURE_WORKERS"),
		QueueSize:      v.GetInt("CAPTURE_QUEUE_SIZE"),
	}

	cfg.Export = ExportConfig{
		ScratchDir:      v.GetString("EXPORT_SCRATCH_DIR"),
		ArtifactTTL:     parseDuration(v.GetString("EXPORT_ARTIFACT_TTL"), time.Hour),
		SignedURLSecret: v.GetString("EXPORT_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORT_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("EXPORT_CLEANUP_INTERVAL"), 15*time.Minute),
	}

	cfg.Summary = SummaryConfig{
		Enabled:     v.GetBool("ENABLE_SUMMARY"),
		ProjectID:   v.GetString("SUMMARY_PROJECT_ID"),
		Region:      v.GetString("SUMMARY_REGION"),
		Model:       v.GetString("SUMMARY_MODEL"),
		TargetWords: v.GetInt("SUMMARY_TARGET_WORDS"),
		Length:      v.GetString("SUMMARY_LENGTH"),
	}

	cfg.OCR = OCRConfig{Languages: splitAndTrim(v.GetString("OCR_LANGUAGES"))}

	cfg.Widget = WidgetConfig{
		RedisKey:     v.GetString("WIDGET_REDIS_KEY"),
		Channel:      v.GetString("WIDGET_CHANNEL"),
		SnapshotFile: v.GetString("WIDGET_SNAPSHOT_FILE"),
	}

	cfg.Lock = LockConfig{PasscodeHash: v.GetString("LOCK_PASSCODE_HASH")}

	cfg.Documents = DocumentsConfig{
		DeletionDelay: parseDuration(v.GetString("DOCUMENT_DELETION_DELAY"), 2*time.Second),
	}

	cfg.Entitlement = EntitlementConfig{Premium: v.GetBool("ENTITLEMENT_PREMIUM")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docmatic")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "docmatic")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("QUOTA_FREE_LIMIT", 3)
	v.SetDefault("QUOTA_TIME_ZONE", "Local")

	v.SetDefault("WATERMARK_TEXT", ProductName)
	v.SetDefault("WATERMARK_LOGO_PATH", "")
	v.SetDefault("WATERMARK_ALPHA", 0.3)
	v.SetDefault("WATERMARK_FONT_SCALE", 1.0)

	v.SetDefault("CAPTURE_SCAN_QUALITY", 0.65)
	v.SetDefault("CAPTURE_IMPORT_QUALITY", 0.85)
	v.SetDefault("CAPTURE_IMPORT_DPI", 144)
	v.SetDefault("CAPTURE_MAX_UPLOAD_BYTES", 64*1024*1024)
	v.SetDefault("CAPTURE_WORKERS", 1)
	v.SetDefault("CAPTURE_QUEUE_SIZE", 16)

	v.SetDefault("EXPORT_SCRATCH_DIR", "./scratch")
	v.SetDefault("EXPORT_ARTIFACT_TTL", "1h")
	v.SetDefault("EXPORT_SIGNED_URL_SECRET", "dev_export_secret")
	v.SetDefault("EXPORT_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORT_CLEANUP_INTERVAL", "15m")

	v.SetDefault("ENABLE_SUMMARY", false)
	v.SetDefault("SUMMARY_PROJECT_ID", "")
	v.SetDefault("SUMMARY_REGION", "us-central1")
	v.SetDefault("SUMMARY_MODEL", "gemini-1.5-flash")
	v.SetDefault("SUMMARY_TARGET_WORDS", 0)
	v.SetDefault("SUMMARY_LENGTH", "medium")

	v.SetDefault("OCR_LANGUAGES", "eng")

	v.SetDefault("WIDGET_REDIS_KEY", "docmatic:widget:snapshot")
	v.SetDefault("WIDGET_CHANNEL", "docmatic:widget:refresh")
	v.SetDefault("WIDGET_SNAPSHOT_FILE", "widget/snapshot.json")

	v.SetDefault("LOCK_PASSCODE_HASH", "")
	v.SetDefault("DOCUMENT_DELETION_DELAY", "2s")
	v.SetDefault("ENTITLEMENT_PREMIUM", false)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
