package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	AppName  string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	// OTPStore selects the verification code backend: "dynamo" | "redis" | "memory".
	OTPStore string
	// OrderStore selects the order backend: "dynamo" | "postgres".
	OrderStore  string
	RedisAddr   string
	RedisDB     int
	DatabaseURL string

	SMTP   SMTP
	OTPTTL time.Duration

	ESewa          ESewa
	Khalti         Khalti
	GatewayTimeout time.Duration

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	AllowedOrigins []string // CORS allowed origins
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OTPs   string
	Orders string
}

// SMTP is the implicit-TLS relay the mailer talks to.
type SMTP struct {
	Host      string
	Port      int
	From      string
	Username  string
	Password  string
	LocalName string
	Timeout   time.Duration
}

// ESewa configures the signed form-POST gateway.
type ESewa struct {
	FormURL     string
	ProductCode string
	SecretKey   string
	SuccessURL  string
	FailureURL  string
}

// Khalti configures the server-to-server initiation gateway.
type Khalti struct {
	BaseURL    string
	SecretKey  string
	ReturnURL  string
	WebsiteURL string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		AppName:  getEnv("APP_NAME", "CourseHub"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			OTPs:   getEnv("DYNAMO_TABLE_OTPS", "otp_verifications"),
			Orders: getEnv("DYNAMO_TABLE_ORDERS", "orders"),
		},

		OTPStore:    getEnv("OTP_STORE", "dynamo"),
		OrderStore:  getEnv("ORDER_STORE", "dynamo"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		SMTP: SMTP{
			Host:      getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:      getEnvInt("SMTP_PORT", 465),
			From:      getEnv("SMTP_FROM", ""),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			LocalName: getEnv("SMTP_LOCAL_NAME", "localhost"),
			Timeout:   getEnvDuration("SMTP_TIMEOUT", 10*time.Second),
		},
		OTPTTL: getEnvDuration("OTP_TTL", 10*time.Minute),

		ESewa: ESewa{
			FormURL:     getEnv("ESEWA_FORM_URL", "https://rc-epay.esewa.com.np/api/epay/main/v2/form"),
			ProductCode: getEnv("ESEWA_PRODUCT_CODE", "EPAYTEST"),
			SecretKey:   getEnv("ESEWA_SECRET_KEY", ""),
			SuccessURL:  getEnv("ESEWA_SUCCESS_URL", "http://localhost:5173/payment/success"),
			FailureURL:  getEnv("ESEWA_FAILURE_URL", "http://localhost:5173/payment/failure"),
		},
		Khalti: Khalti{
			BaseURL:    getEnv("KHALTI_BASE_URL", "https://dev.khalti.com/api/v2"),
			SecretKey:  getEnv("KHALTI_SECRET_KEY", ""),
			ReturnURL:  getEnv("KHALTI_RETURN_URL", "http://localhost:5173/payment/khalti/return"),
			WebsiteURL: getEnv("KHALTI_WEBSITE_URL", "http://localhost:5173"),
		},
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 7*24*time.Hour),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "10m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
