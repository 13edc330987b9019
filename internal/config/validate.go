package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Addr == "" {
		return errors.New("server address cannot be empty")
	}

	// Validate address format and port
	if _, err := net.ResolveTCPAddr("tcp", c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server address: %v", err)
	}

	if c.Server.MaxUploadSize <= 0 {
		return errors.New("server max_upload_size must be positive")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("unknown log format: %s", c.Log.Format)
	}

	// Validate analysis configuration
	if c.Analysis.MinClauseLength <= 0 {
		return errors.New("analysis min_clause_length must be positive")
	}
	if c.Analysis.SentenceDetector != "punkt" && c.Analysis.SentenceDetector != "rules" {
		return fmt.Errorf("unknown sentence detector: %s", c.Analysis.SentenceDetector)
	}
	if c.Analysis.SnippetLength <= 0 {
		return errors.New("analysis snippet_length must be positive")
	}

	// Validate store configuration
	switch c.Store.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}
	if c.Store.PersistRetries < 0 {
		return errors.New("store persist_retries cannot be negative")
	}

	// Validate Redis configuration
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("redis addr cannot be empty when redis is enabled")
		}
		if c.Redis.TTL < 0 {
			return errors.New("redis ttl cannot be negative")
		}
	}

	// Validate MinIO configuration
	if c.MinIO.Enabled {
		if c.MinIO.Endpoint == "" {
			return errors.New("minio endpoint cannot be empty when minio is enabled")
		}
		if c.MinIO.AccessKey == "" {
			return errors.New("minio access key cannot be empty when minio is enabled")
		}
		if c.MinIO.SecretKey == "" {
			return errors.New("minio secret key cannot be empty when minio is enabled")
		}
		if !isValidBucketName(c.MinIO.Bucket) {
			return fmt.Errorf("invalid minio bucket name: %s", c.MinIO.Bucket)
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/': %s", c.Metrics.Path)
	}

	return nil
}

// isValidBucketName checks if a bucket name is valid according to MinIO/S3 rules
func isValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return bucketNamePattern.MatchString(name)
}
