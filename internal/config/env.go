package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/depsentry/depsentry/internal/update"
)

// Environment variables consulted by FromEnv.
const (
	EnvDataDir     = "DEPSENTRY_DATA_DIR"
	EnvOffline     = "DEPSENTRY_OFFLINE"
	EnvDBDriver    = "DEPSENTRY_DB_DRIVER"
	EnvDBDSN       = "DEPSENTRY_DB_DSN"
	EnvS3Endpoint  = "DEPSENTRY_S3_ENDPOINT"
	EnvS3Bucket    = "DEPSENTRY_S3_BUCKET"
	EnvS3AccessKey = "DEPSENTRY_S3_ACCESS_KEY"
	EnvS3SecretKey = "DEPSENTRY_S3_SECRET_KEY"
	EnvLogLevel    = "DEPSENTRY_LOG_LEVEL"
)

// LoadDotEnv loads variables from the given files, or ./.env when none are
// named. Variables already set in the process win. A missing file is not
// an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
	}
	return godotenv.Load(files...)
}

// FromEnv returns the configuration carried by the environment. It sits
// between the config files and the command line in precedence, and is the
// intended home for secrets such as the database DSN.
func FromEnv() FileConfig {
	var cfg FileConfig
	if v := env(EnvDataDir); v != "" {
		cfg.DataDir = &v
	}
	if v := env(EnvOffline); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Offline = &b
		}
	}
	if driver, dsn := env(EnvDBDriver), env(EnvDBDSN); driver != "" || dsn != "" {
		cfg.Database = &DatabaseConfig{}
		if driver != "" {
			cfg.Database.Driver = &driver
		}
		if dsn != "" {
			cfg.Database.DSN = &dsn
		}
	}
	if lvl := env(EnvLogLevel); lvl != "" {
		cfg.Logging = &LoggingConfig{Level: &lvl}
	}
	return cfg
}

// S3Credentials fills unset S3 settings of s from the environment.
func S3Credentials(s update.S3Config) update.S3Config {
	fill := func(dst *string, key string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = env(key)
		}
	}
	fill(&s.Endpoint, EnvS3Endpoint)
	fill(&s.Bucket, EnvS3Bucket)
	fill(&s.AccessKey, EnvS3AccessKey)
	fill(&s.SecretKey, EnvS3SecretKey)
	return s
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }
