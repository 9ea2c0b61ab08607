package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
)

// duration unmarshals either a Go duration string ("30s") or integer nanoseconds.
type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

type jsonS3 struct {
	Endpoint     *string `json:"endpoint"`
	Region       *string `json:"region"`
	AccessKey    *string `json:"access_key"`
	SecretKey    *string `json:"secret_key"`
	Bucket       *string `json:"bucket"`
	BucketSuffix *string `json:"bucket_suffix"`
}

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// tell "absent" apart from zero values so a partial file keeps the defaults.
type JsonConfig struct {
	BaseURL            *string   `json:"base_url"`
	Backend            *string   `json:"backend"`
	RequestTimeout     *duration `json:"request_timeout"`
	DatabasePath       *string   `json:"database_path"`
	DownloadDir        *string   `json:"download_dir"`
	LogDir             *string   `json:"log_dir"`
	LogLevel           *string   `json:"log_level"`
	ChunkSize          *int64    `json:"chunk_size"`
	MaxParallelUploads *int      `json:"max_parallel_uploads"`
	PartAttempts       *uint64   `json:"part_attempts"`
	CredentialTTL      *duration `json:"credential_ttl"`
	S3                 *jsonS3   `json:"s3"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c/-config (or GOPHDRIVE_CONFIG). Read and unmarshal errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	set(&cfg.BaseURL, jc.BaseURL)
	set(&cfg.Backend, jc.Backend)
	set(&cfg.DatabasePath, jc.DatabasePath)
	set(&cfg.DownloadDir, jc.DownloadDir)
	set(&cfg.LogDir, jc.LogDir)
	set(&cfg.LogLevel, jc.LogLevel)
	set(&cfg.ChunkSize, jc.ChunkSize)
	set(&cfg.MaxParallelUploads, jc.MaxParallelUploads)
	set(&cfg.PartAttempts, jc.PartAttempts)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(*jc.RequestTimeout)
	}
	if jc.CredentialTTL != nil {
		cfg.CredentialTTL = time.Duration(*jc.CredentialTTL)
	}

	if s := jc.S3; s != nil {
		set(&cfg.S3.Endpoint, s.Endpoint)
		set(&cfg.S3.Region, s.Region)
		set(&cfg.S3.AccessKey, s.AccessKey)
		set(&cfg.S3.SecretKey, s.SecretKey)
		set(&cfg.S3.Bucket, s.Bucket)
		set(&cfg.S3.BucketSuffix, s.BucketSuffix)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
