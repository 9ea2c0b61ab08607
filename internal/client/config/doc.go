// Package config loads runtime configuration for the gophdrive client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or GOPHDRIVE_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// The merged result is checked by (*Config).Validate; LoadConfig panics on
// invalid settings so the process never starts half-configured.
//
// # JSON schema
//
// Durations are either strings like "30s" or integer nanoseconds. Absent keys
// keep their defaults:
//
//	{
//	  "base_url": "http://127.0.0.1:8080/api",
//	  "backend": "s3",
//	  "request_timeout": "30s",
//	  "database_path": "/home/me/.config/gophdrive/gophdrive.db",
//	  "log_dir": "/home/me/.config/gophdrive",
//	  "log_level": "debug",
//	  "chunk_size": 5242880,
//	  "max_parallel_uploads": 4,
//	  "part_attempts": 3,
//	  "credential_ttl": "24h",
//	  "s3": {
//	    "endpoint": "http://127.0.0.1:9000",
//	    "region": "us-east-1",
//	    "access_key": "minio",
//	    "secret_key": "minio123",
//	    "bucket_suffix": "-gophdrive"
//	  }
//	}
package config
