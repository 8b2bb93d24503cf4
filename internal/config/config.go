package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	Store       StoreConfig
	Archive     ArchiveConfig

	// WorkspaceTaggerCacheSize bounds how many built workspace tagger tests are kept.
	WorkspaceTaggerCacheSize int
}

type StoreConfig struct {
	CacheTTL  time.Duration
	CacheSize int
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads .env, command line flags and the environment, in that order.
func Load() (*Config, error) {
	return LoadFrom(flag.CommandLine, os.Args[1:])
}

// LoadFrom registers -port on fs and parses args. Callers may register their
// own flags on fs beforehand.
func LoadFrom(fs *flag.FlagSet, args []string) (*Config, error) {
	_ = godotenv.Load()

	port := fs.String("port", ":8082", "server port")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	cfg := &Config{
		Port:                     *port,
		Env:                      env,
		DatabaseURL:              strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Store:                    loadStoreConfig(),
		Archive:                  loadArchiveConfig(env),
		WorkspaceTaggerCacheSize: envInt("WORKSPACE_TAGGER_CACHE_SIZE", 256),
	}
	if isLocal(env) {
		local := localConfig()
		cfg.Archive = local.Archive
	}
	return cfg, nil
}

func loadStoreConfig() StoreConfig {
	ttl := 30 * time.Second
	if raw := strings.TrimSpace(os.Getenv("STORE_CACHE_TTL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			ttl = d
		}
	}
	return StoreConfig{
		CacheTTL:  ttl,
		CacheSize: envInt("STORE_CACHE_SIZE", 256),
	}
}

func loadArchiveConfig(env string) ArchiveConfig {
	endpoint := strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT"))
	return ArchiveConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), "repoinsight-analyses"),
		UseSSL:    resolveArchiveUseSSL(env),
	}
}

func resolveArchiveUseSSL(env string) bool {
	if isLocal(env) {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARCHIVE_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func isLocal(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "local")
}

func envInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
