package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Upload   UploadConfig
	OCR      OCRConfig
	Matching MatchingConfig
	Worker   WorkerConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

type UploadConfig struct {
	Dir         string
	MaxFileSize int64
}

type OCRConfig struct {
	Languages  string
	TessConfig string
}

// MatchingConfig holds the tunable scoring weights and thresholds of the
// matching engine. The defaults are the values the engine shipped with; none
// of them were derived from a labeled dataset, so they are configuration
// rather than invariants.
type MatchingConfig struct {
	MinScore   float64
	MaxResults int

	AmountExactTolerance float64
	AmountNearTolerance  float64
	DateProximityDays    int

	NumberStrongThreshold  float64
	NumberStrongWeight     float64
	NumberPartialThreshold float64
	NumberPartialWeight    float64

	AmountExactWeight        float64
	AmountNearWeight         float64
	ExpenseAmountExactWeight float64
	ExpenseAmountNearWeight  float64

	DateWeight        float64
	ExpenseDateWeight float64

	SupplierNameThreshold float64
	SupplierNameWeight    float64
	DescriptionThreshold  float64
	DescriptionWeight     float64
}

type WorkerConfig struct {
	Count     int
	QueueSize int
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	maxFileSize, _ := strconv.ParseInt(getEnv("UPLOAD_MAX_FILE_SIZE", "10485760"), 10, 64)

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "fieldscan"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		Upload: UploadConfig{
			Dir:         getEnv("UPLOAD_DIR", "uploads"),
			MaxFileSize: maxFileSize,
		},
		OCR: OCRConfig{
			Languages:  getEnv("OCR_LANGUAGES", "eng"),
			TessConfig: getEnv("OCR_TESS_CONFIG", ""),
		},
		Matching: MatchingConfig{
			MinScore:   getEnvFloat("MATCH_MIN_SCORE", 0.3),
			MaxResults: getEnvInt("MATCH_MAX_RESULTS", 5),

			AmountExactTolerance: getEnvFloat("MATCH_AMOUNT_EXACT_TOLERANCE", 0.01),
			AmountNearTolerance:  getEnvFloat("MATCH_AMOUNT_NEAR_TOLERANCE", 1.0),
			DateProximityDays:    getEnvInt("MATCH_DATE_PROXIMITY_DAYS", 7),

			NumberStrongThreshold:  getEnvFloat("MATCH_NUMBER_STRONG_THRESHOLD", 0.8),
			NumberStrongWeight:     getEnvFloat("MATCH_NUMBER_STRONG_WEIGHT", 0.5),
			NumberPartialThreshold: getEnvFloat("MATCH_NUMBER_PARTIAL_THRESHOLD", 0.6),
			NumberPartialWeight:    getEnvFloat("MATCH_NUMBER_PARTIAL_WEIGHT", 0.3),

			AmountExactWeight:        getEnvFloat("MATCH_AMOUNT_EXACT_WEIGHT", 0.4),
			AmountNearWeight:         getEnvFloat("MATCH_AMOUNT_NEAR_WEIGHT", 0.2),
			ExpenseAmountExactWeight: getEnvFloat("MATCH_EXPENSE_AMOUNT_EXACT_WEIGHT", 0.5),
			ExpenseAmountNearWeight:  getEnvFloat("MATCH_EXPENSE_AMOUNT_NEAR_WEIGHT", 0.3),

			DateWeight:        getEnvFloat("MATCH_DATE_WEIGHT", 0.1),
			ExpenseDateWeight: getEnvFloat("MATCH_EXPENSE_DATE_WEIGHT", 0.2),

			SupplierNameThreshold: getEnvFloat("MATCH_SUPPLIER_NAME_THRESHOLD", 0.7),
			SupplierNameWeight:    getEnvFloat("MATCH_SUPPLIER_NAME_WEIGHT", 0.3),
			DescriptionThreshold:  getEnvFloat("MATCH_DESCRIPTION_THRESHOLD", 0.6),
			DescriptionWeight:     getEnvFloat("MATCH_DESCRIPTION_WEIGHT", 0.2),
		},
		Worker: WorkerConfig{
			Count:     getEnvInt("WORKER_COUNT", 4),
			QueueSize: getEnvInt("WORKER_QUEUE_SIZE", 64),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
