package db

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/neurobridge-pathopt/internal/platform/envutil"
	"github.com/yungbote/neurobridge-pathopt/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	// postgres or sqlite.
	Driver string `yaml:"driver"`
	// Full DSN; overrides the discrete postgres fields. For sqlite this is
	// the file path (or "file::memory:").
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// ConfigFromEnv fills base from DATABASE_DRIVER, DATABASE_DSN and POSTGRES_*.
func ConfigFromEnv(base Config) Config {
	cfg := base
	cfg.Driver = strings.ToLower(envutil.String("DATABASE_DRIVER", cfg.Driver))
	cfg.DSN = envutil.String("DATABASE_DSN", cfg.DSN)
	cfg.Host = envutil.String("POSTGRES_HOST", cfg.Host)
	cfg.Port = envutil.String("POSTGRES_PORT", cfg.Port)
	cfg.User = envutil.String("POSTGRES_USER", cfg.User)
	cfg.Password = envutil.String("POSTGRES_PASSWORD", cfg.Password)
	cfg.Name = envutil.String("POSTGRES_NAME", cfg.Name)
	cfg.SlowThreshold = envutil.Duration("DATABASE_SLOW_THRESHOLD", cfg.SlowThreshold)

	if cfg.Driver == "" {
		cfg.Driver = DriverPostgres
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	if cfg.User == "" {
		cfg.User = "postgres"
	}
	if cfg.Name == "" {
		cfg.Name = "pathopt"
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = time.Second
	}
	return cfg
}

func (c Config) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case DriverPostgres, "":
		dsn := c.DSN
		if dsn == "" {
			u := url.URL{
				Scheme:   "postgres",
				User:     url.UserPassword(c.User, c.Password),
				Host:     c.Host + ":" + c.Port,
				Path:     "/" + c.Name,
				RawQuery: "sslmode=disable",
			}
			dsn = u.String()
		}
		return postgres.Open(dsn), nil
	case DriverSQLite:
		if c.DSN == "" {
			return nil, fmt.Errorf("sqlite requires a dsn")
		}
		return sqlite.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func Open(cfg Config, logg *logger.Logger) (*Service, error) {
	serviceLog := logger.OrNop(logg).With("service", "DatabaseService")

	dialector, err := cfg.dialector()
	if err != nil {
		return nil, err
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	gormLog := gormLogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	serviceLog.Info("database connected", "driver", cfg.Driver)
	return &Service{db: db, driver: cfg.Driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
