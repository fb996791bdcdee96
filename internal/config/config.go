package config

import (
	"os"
	"strings"
	"time"

	"github.com/deptconnect/portal/pkg/errs"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	MinIO     MinIOConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	LogLevel     string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// BackendConfig selects the document store and names the deployment whose
// collections the portal reads and writes.
type BackendConfig struct {
	Driver       string
	DeploymentID string
	SessionFile  string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

func (r RedisConfig) Enabled() bool { return r.Host != "" }

type KeycloakConfig struct {
	URL           string
	Realm         string
	ClientID      string
	AllowInsecure bool
}

// Issuer is the realm issuer URL used for OIDC discovery.
func (k KeycloakConfig) Issuer() string {
	if k.URL == "" || k.Realm == "" {
		return ""
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type JWTConfig struct {
	Secret     string
	SessionTTL time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (m MinIOConfig) Enabled() bool { return m.Endpoint != "" }

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
	Redis   bool
	Window  time.Duration
}

// LoadConfig loads configuration from environment variables and an optional
// .env file. It never fails on missing values; call Validate for that.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "127.0.0.1")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BACKEND_DRIVER", DriverMongo)
	v.SetDefault("MONGODB_DATABASE", "portal")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SESSION_TTL", 10080)
	v.SetDefault("MINIO_BUCKET", "portal-attachments")
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW", 1)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			LogLevel:     v.GetString("LOG_LEVEL"),
			CORSOrigins:  splitList(v.GetString("CORS_ORIGINS")),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // SSE streams stay open
		},
		Backend: BackendConfig{
			Driver:       strings.ToLower(v.GetString("BACKEND_DRIVER")),
			DeploymentID: v.GetString("PORTAL_DEPLOYMENT_ID"),
			SessionFile:  v.GetString("PORTAL_SESSION_FILE"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:           v.GetString("KEYCLOAK_URL"),
			Realm:         v.GetString("KEYCLOAK_REALM"),
			ClientID:      v.GetString("KEYCLOAK_CLIENT_ID"),
			AllowInsecure: v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			SessionTTL: time.Duration(v.GetInt("JWT_SESSION_TTL")) * time.Minute,
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		RateLimit: RateLimitConfig{
			Enabled: v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:     v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:   v.GetInt("RATE_LIMIT_BURST"),
			Redis:   v.GetBool("RATE_LIMIT_USE_REDIS"),
			Window:  time.Duration(v.GetInt("RATE_LIMIT_WINDOW")) * time.Second,
		},
	}
	return cfg, nil
}

// placeholders are values shipped in sample .env files that must be replaced.
var placeholders = []string{"changeme", "change-me", "your-", "<", "todo", "xxx"}

func isPlaceholder(s string) bool {
	l := strings.ToLower(strings.TrimSpace(s))
	for _, p := range placeholders {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errs.Config(field, "is required")
	}
	if isPlaceholder(value) {
		return errs.Config(field, "still holds a placeholder value")
	}
	return nil
}

// Validate checks the backend configuration the session pipeline depends on.
// It returns the first problem found as *errs.ConfigError.
func (c *Config) Validate() error {
	if err := required("PORTAL_DEPLOYMENT_ID", c.Backend.DeploymentID); err != nil {
		return err
	}
	if err := required("JWT_SECRET", c.JWT.Secret); err != nil {
		return err
	}
	if len(c.JWT.Secret) < 32 {
		return errs.Config("JWT_SECRET", "must be at least 32 characters")
	}
	switch c.Backend.Driver {
	case DriverMemory:
	case DriverMongo:
		if err := required("MONGODB_URI", c.MongoDB.URI); err != nil {
			return err
		}
		if err := required("MONGODB_DATABASE", c.MongoDB.Database); err != nil {
			return err
		}
	default:
		return errs.Config("BACKEND_DRIVER", "must be one of mongo, memory")
	}
	if c.Keycloak.URL != "" {
		if err := required("KEYCLOAK_REALM", c.Keycloak.Realm); err != nil {
			return err
		}
		if err := required("KEYCLOAK_CLIENT_ID", c.Keycloak.ClientID); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
