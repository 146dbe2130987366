package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	AppEnv                string
	AppPort               string
	AllowedOrigins        string
	SiteURL               string
	DBDriver              string
	DBHost                string
	DBPort                string
	DBUser                string
	DBPassword            string
	DBName                string
	DBPath                string
	DBMaxIdleConns        int
	DBMaxOpenConns        int
	NatsURL               string
	EventDispatchSchedule string
	JWTSecret             string
	JWTExpirationHours    int
	MagicLinkTTLMinutes   int
	AuthCodeTTLMinutes    int
	SessionCookie         string
}

// fileValues holds settings read from the optional config file. Environment variables
// take precedence over it, and it takes precedence over the built-in defaults.
var fileValues = map[string]string{}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if value, exists := fileValues[key]; exists {
		return value
	}
	log.Printf("%s not set, defaulting to %s", key, defaultValue)
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		value, exists = fileValues[key]
	}
	if exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Invalid integer value for %s, defaulting to %d", key, defaultValue)
	}
	return defaultValue
}

// loadFile reads a TOML file whose keys are the lower-case environment variable names,
// e.g. `db_driver = "sqlite"`.
func loadFile(path string) (map[string]string, error) {
	var raw map[string]interface{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		envKey := toEnvKey(key)
		switch v := value.(type) {
		case string:
			values[envKey] = v
		case int64:
			values[envKey] = strconv.FormatInt(v, 10)
		case bool:
			values[envKey] = strconv.FormatBool(v)
		default:
			log.Printf("Ignoring config key %s with unsupported type %T", key, value)
		}
	}
	return values, nil
}

func toEnvKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func Load() Config {
	log.Println("Loading configuration...")

	fileValues = map[string]string{}
	if path, ok := os.LookupEnv("FINITELIFE_CONFIG"); ok && path != "" {
		values, err := loadFile(path)
		if err != nil {
			log.Printf("Failed to read config file %s: %v", path, err)
		} else {
			fileValues = values
		}
	}

	return Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		AppPort:               getEnv("APP_PORT", "8080"),
		AllowedOrigins:        getEnv("ALLOWED_ORIGINS", "*"),
		SiteURL:               getEnv("SITE_URL", "http://localhost:3000"),
		DBDriver:              getEnv("DB_DRIVER", "postgres"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "finitelife"),
		DBPassword:            getEnv("DB_PASSWORD", "finitelife"),
		DBName:                getEnv("DB_NAME", "finitelife"),
		DBPath:                getEnv("DB_PATH", "finitelife.db"),
		DBMaxIdleConns:        getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:        getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		NatsURL:               getEnv("NATS_URL", "nats://localhost:4222"),
		EventDispatchSchedule: getEnv("EVENT_DISPATCH_SCHEDULE", "@every 1s"),
		JWTSecret:             getEnv("JWT_SECRET", "your-super-secret-key-change-this-in-production"),
		JWTExpirationHours:    getEnvAsInt("JWT_EXPIRATION_HOURS", 24*7),
		MagicLinkTTLMinutes:   getEnvAsInt("MAGIC_LINK_TTL_MINUTES", 60),
		AuthCodeTTLMinutes:    getEnvAsInt("AUTH_CODE_TTL_MINUTES", 5),
		SessionCookie:         getEnv("SESSION_COOKIE", "finitelife_session"),
	}
}
