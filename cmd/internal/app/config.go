package app

import "time"

// Store backends selectable via COURIER_STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// StoreBackend selects the persistence layer: memory, postgres or mongo.
	StoreBackend string

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	PGSchema    string

	MongoURI      string
	MongoDatabase string

	// If true, /readyz returns 503 unless the configured backend is reachable.
	ReadinessRequireDB bool

	// CORS policy for browser REST clients. The websocket endpoint keeps its
	// own origin allowlist.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("COURIER_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("COURIER_LOG_LEVEL", "info"),
		LogPretty: EnvBool("COURIER_LOG_PRETTY", false),

		ReadHeaderTimeout: EnvDuration("COURIER_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("COURIER_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("COURIER_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("COURIER_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("COURIER_HTTP_MAX_HEADER_BYTES", 1<<20),

		StoreBackend: EnvString("COURIER_STORE_BACKEND", BackendMemory),

		DatabaseURL: EnvString("COURIER_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("COURIER_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("COURIER_DB_MIN_CONNS", 0),
		PGSchema:    EnvString("COURIER_PG_SCHEMA", "courier"),

		MongoURI:      EnvString("COURIER_MONGO_URI", ""),
		MongoDatabase: EnvString("COURIER_MONGO_DATABASE", "courier"),

		ReadinessRequireDB: EnvBool("COURIER_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvCSV("COURIER_CORS_ALLOWED_ORIGINS", ""),
		CORSAllowCredentials: EnvBool("COURIER_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("COURIER_CORS_MAX_AGE_SECONDS", 600),
	}
}
