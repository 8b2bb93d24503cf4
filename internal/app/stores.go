package app

import (
	"fmt"
	"log"
	"strings"

	"repoinsight/internal/archive"
	"repoinsight/internal/config"
	"repoinsight/internal/store"
)

func initStore(cfg *config.Config) (store.Store, error) {
	var origin store.Store
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		pg, err := store.NewPostgresStore(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		log.Printf("fingerprint store: postgres")
		origin = pg
	} else {
		log.Printf("fingerprint store: in-memory")
		origin = store.NewMemoryStore()
	}
	return store.NewCachedStore(origin, store.CacheConfig{
		UsageTTL:        cfg.Store.CacheTTL,
		UsageMaxEntries: cfg.Store.CacheSize,
		KindsTTL:        cfg.Store.CacheTTL,
		KindsMaxEntries: cfg.Store.CacheSize,
	}), nil
}

func initArchive(cfg *config.Config) (archive.Archive, error) {
	if !cfg.Archive.Enabled {
		log.Printf("analysis archive: in-memory")
		return archive.NewMemoryArchive(), nil
	}
	s3Cfg := archive.S3Config{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	}
	a, err := archive.NewS3Archive(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analysis archive: %w", err)
	}
	log.Printf("analysis archive: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
	return a, nil
}
