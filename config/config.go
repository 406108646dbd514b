package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort        = ":8080"
	DefaultMongoDB     = "pantree"
	DefaultFDCBaseURL  = "https://api.nal.usda.gov/fdc/v1/foods/search"
	DefaultSearchTTL   = time.Hour
	DefaultMaxImageDim = 2048
)

// StorageKind names the persistence backend chosen at startup.
type StorageKind string

const (
	StoragePostgres StorageKind = "postgres"
	StorageMongo    StorageKind = "mongo"
	StorageMemory   StorageKind = "memory"
)

type Config struct {
	Env      string
	LogLevel string
	Port     string

	DatabaseURL string
	MongoURI    string
	MongoDB     string

	RedisAddr     string
	RedisPassword string

	FDCAPIKey      string
	FDCBaseURL     string
	SearchCacheTTL time.Duration

	CORSOrigins []string
	JWTSecret   []byte
	PublicURL   string

	S3Bucket string
	S3Region string

	// Quiet suppresses the warning about falling back to in-memory storage.
	// Tests set it.
	Quiet bool
}

type Option func(*Config)

func WithQuiet() Option {
	return func(c *Config) { c.Quiet = true }
}

// WithEnv overrides lookups, mostly for tests.
func WithEnv(env map[string]string) Option {
	return func(c *Config) { c.fromLookup(func(k string) string { return env[k] }) }
}

// Load reads .env when present, then the process environment. The returned
// bool reports whether a .env file was found.
func Load(opts ...Option) (*Config, bool) {
	found := godotenv.Load() == nil

	c := &Config{}
	c.fromLookup(os.Getenv)
	for _, opt := range opts {
		opt(c)
	}
	return c, found
}

func (c *Config) fromLookup(get func(string) string) {
	c.Env = get("ENV")
	c.LogLevel = get("LOG_LEVEL")
	c.Port = normalizePort(get("PORT"))
	c.DatabaseURL = get("DATABASE_URL")
	c.MongoURI = get("MONGO_URI")
	c.MongoDB = orDefault(get("MONGO_DB"), DefaultMongoDB)
	c.RedisAddr = get("REDIS_ADDR")
	c.RedisPassword = get("REDIS_PASSWORD")
	c.FDCAPIKey = get("FDC_API_KEY")
	c.FDCBaseURL = orDefault(get("FDC_BASE_URL"), DefaultFDCBaseURL)
	c.SearchCacheTTL = DefaultSearchTTL
	if ttl, err := time.ParseDuration(get("SEARCH_CACHE_TTL")); err == nil && ttl > 0 {
		c.SearchCacheTTL = ttl
	}
	c.CORSOrigins = splitList(get("CORS_ORIGINS"))
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	c.JWTSecret = nil
	if secret := get("JWT_SECRET"); secret != "" {
		c.JWTSecret = []byte(secret)
	}
	c.PublicURL = strings.TrimRight(get("PUBLIC_URL"), "/")
	c.S3Bucket = get("S3_BUCKET")
	c.S3Region = orDefault(get("S3_REGION"), get("AWS_REGION"))
}

// Storage picks the backend: a postgres DSN wins over a mongo URI, and
// neither means in-memory.
func (c *Config) Storage() StorageKind {
	switch {
	case c.DatabaseURL != "":
		return StoragePostgres
	case c.MongoURI != "":
		return StorageMongo
	}
	return StorageMemory
}

func normalizePort(port string) string {
	if port == "" {
		return DefaultPort
	}
	if port[0] != ':' {
		return ":" + port
	}
	return port
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
