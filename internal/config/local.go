package config

import (
	"os"
	"strings"
)

// localConfig points the archive at the minio of the local compose setup.
func localConfig() Config {
	return Config{
		Archive: ArchiveConfig{
			Enabled:   true,
			Endpoint:  firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ENDPOINT")), "minio:9000"),
			Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_REGION")), "us-east-1"),
			AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_ACCESS_KEY")), "repoinsight"),
			SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_SECRET_KEY")), "repoinsight123"),
			Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET")), "repoinsight-analyses"),
			UseSSL:    false,
		},
	}
}
