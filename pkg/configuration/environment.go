package configuration

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		panic(err)
	}
	return c
})

// Use returns the process-wide configuration, loading it on first call.
func Use() *Configuration {
	return singleton()
}

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

// DatabaseOptions describes the control-plane store. Provisioned tenant
// databases live on the same cluster and reuse Host/Port/User/Password.
type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"complium"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

// ConnectionStringFor builds a connection string against the same cluster
// for a provisioned tenant database.
func (d *DatabaseOptions) ConnectionStringFor(dbName string) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, dbName, d.Password,
	)
}

type TenantPoolOptions struct {
	MaxConns       int32         `env:"TENANT_POOL_MAX_CONNS" envDefault:"8"`
	AcquireTimeout time.Duration `env:"TENANT_POOL_ACQUIRE_TIMEOUT" envDefault:"5s"`
}

func (t *TenantPoolOptions) Validate() error {
	if t.MaxConns < 1 {
		return fmt.Errorf("tenant pool MaxConns must be positive, got %d", t.MaxConns)
	}
	if t.AcquireTimeout <= 0 {
		return fmt.Errorf("tenant pool AcquireTimeout must be positive, got %s", t.AcquireTimeout)
	}
	return nil
}

type CacheOptions struct {
	TTL        time.Duration `env:"CACHE_TTL" envDefault:"60s"`
	ContextTTL time.Duration `env:"CACHE_CONTEXT_TTL" envDefault:"30s"`
	Storage    string        `env:"CACHE_STORAGE" envDefault:"memory"` // memory or redis
	RedisURL   string        `env:"CACHE_REDIS_URL"`
}

func (c *CacheOptions) Validate() error {
	if c.Storage != "memory" && c.Storage != "redis" {
		return fmt.Errorf("cache Storage must be 'memory' or 'redis', got '%s'", c.Storage)
	}
	if c.Storage == "redis" && c.RedisURL == "" {
		return fmt.Errorf("cache RedisURL is required when Storage is 'redis'")
	}
	return nil
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type Configuration struct {
	Database   DatabaseOptions
	TenantPool TenantPoolOptions
	Cache      CacheOptions
	Prometheus PrometheusOptions

	GoAppEnvironment string        `env:"GO_APP_ENV" envDefault:"local"`
	SocketAddress    string        `env:"SOCKET_ADDRESS" envDefault:":3200"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"720h"`

	logger *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) load(envFiles []string) error {
	if _, err := LoadEnv(envFiles); err != nil {
		return err
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.TenantPool.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	c.Database.Opts = c.Database.ConnectionString()

	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		log.Printf("invalid log level %q, defaulting to info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if c.GoAppEnvironment == Production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	c.logger = logger
	return nil
}
