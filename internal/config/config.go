package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/iliyamo/festival-ticketing/internal/identity"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable; a .env file in the working directory is read
// first when present.
type Config struct {
	Env        string // application environment (dev, test, prod)
	Port       string // HTTP port to listen on
	DBDriver   string // "mysql" or "sqlite"
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	SQLitePath string // database file when DBDriver is sqlite
	Migrate    bool   // create missing tables on startup

	JWTSecret     string                  // HS256 secret for locally issued tokens (optional)
	OIDCProviders []identity.OIDCProvider // external identity providers
	RoleDirectory string                  // YAML file overriding the built-in role directory

	AMQPURL     string // RabbitMQ connection string; empty disables notifications
	RunConsumer bool   // run the ticket event consumer inside the server
	AuditLog    string // file the consumer appends ticket events to
	LogLevel    string // debug, info, warn, error
	LogFormat   string // json or text
}

// Load reads configuration values from the environment. Required values
// are enforced by must() and a missing value aborts the process.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:           envStr("APP_ENV", "dev"),
		Port:          must("APP_PORT"),
		DBDriver:      strings.ToLower(envStr("DB_DRIVER", "mysql")),
		Migrate:       envBool("DB_MIGRATE", true),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		OIDCProviders: parseProviders(os.Getenv("OIDC_PROVIDERS")),
		RoleDirectory: os.Getenv("ROLE_DIRECTORY_FILE"),
		AMQPURL:       amqpURL(),
		RunConsumer:   envBool("QUEUE_CONSUMER", true),
		AuditLog:      envStr("TICKET_AUDIT_LOG", "logs/tickets.log"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		LogFormat:     envStr("LOG_FORMAT", "text"),
	}
	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
		cfg.SQLitePath = envStr("SQLITE_PATH", "festival.db")
	default:
		log.Fatalf("unsupported DB_DRIVER: %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" && len(cfg.OIDCProviders) == 0 {
		log.Fatalf("either JWT_SECRET or OIDC_PROVIDERS must be set")
	}
	return cfg
}

// parseProviders reads "issuer|client_id" pairs separated by commas.
func parseProviders(s string) []identity.OIDCProvider {
	var out []identity.OIDCProvider
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		issuer, client, ok := strings.Cut(p, "|")
		if !ok || issuer == "" || client == "" {
			log.Fatalf("invalid OIDC_PROVIDERS entry: %q", p)
		}
		out = append(out, identity.OIDCProvider{Issuer: issuer, ClientID: client})
	}
	return out
}

func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
