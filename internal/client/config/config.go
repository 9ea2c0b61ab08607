package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const (
	BackendREST = "rest"
	BackendS3   = "s3"
)

// S3 holds the settings of the direct object storage backend.
type S3 struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BucketSuffix string
}

// Config holds runtime settings for the gophdrive client.
//
// Backend selects where object operations go: "rest" sends everything to the
// API at BaseURL, "s3" talks to the bucket directly and keeps the API for
// authentication, sharing and groups.
type Config struct {
	BaseURL        string
	Backend        string
	RequestTimeout time.Duration

	DatabasePath string
	DownloadDir  string

	LogDir   string
	LogLevel string

	ChunkSize          int64
	MaxParallelUploads int
	PartAttempts       uint64

	// CredentialTTL is how long a login stays valid locally.
	CredentialTTL time.Duration

	S3 S3
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080/api"
	c.Backend = BackendREST
	c.RequestTimeout = 30 * time.Second

	dir := defaultDataDir()
	c.DatabasePath = filepath.Join(dir, "gophdrive.db")
	c.DownloadDir = "."
	c.LogDir = dir
	c.LogLevel = "info"

	c.ChunkSize = 5 * 1024 * 1024
	c.MaxParallelUploads = 4
	c.PartAttempts = 3
	c.CredentialTTL = 24 * time.Hour

	c.S3.Region = "us-east-1"
	c.S3.BucketSuffix = "-gophdrive"
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gophdrive")
	}
	return "."
}

// Validate reports the first group of invalid settings.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.RequestURL),
		validation.Field(&c.Backend, validation.Required, validation.In(BackendREST, BackendS3)),
		validation.Field(&c.RequestTimeout, validation.Min(time.Second)),
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		// S3 requires parts of at least 5 MiB except the last one.
		validation.Field(&c.ChunkSize, validation.Min(int64(5*1024*1024))),
		validation.Field(&c.MaxParallelUploads, validation.Min(1)),
		validation.Field(&c.PartAttempts, validation.Min(uint64(1))),
		validation.Field(&c.CredentialTTL, validation.Min(time.Minute)),
	)
	if err != nil {
		return err
	}

	if c.Backend != BackendS3 {
		return nil
	}
	return validation.ValidateStruct(&c.S3,
		validation.Field(&c.S3.Endpoint, validation.Required, is.RequestURL),
		validation.Field(&c.S3.Region, validation.Required),
		validation.Field(&c.S3.AccessKey, validation.Required),
		validation.Field(&c.S3.SecretKey, validation.Required),
	)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones. Invalid settings panic.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}
	return cfg
}
