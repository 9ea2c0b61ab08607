package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophdrive/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the REST API
//	-b string   object backend: rest or s3
//	-d string   path of the local SQLite database
//	-l string   directory for log files
//	-o string   directory downloads are written to
//	-p int      maximum parallel uploads
//	-v string   log level
//
// Only the flags above are taken from os.Args, see flagx.FilterArgs.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-b", "-d", "-l", "-o", "-p", "-v"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.BaseURL, "a", cfg.BaseURL, "base URL of the API")
	fs.StringVar(&cfg.Backend, "b", cfg.Backend, "object backend (rest|s3)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.LogDir, "l", cfg.LogDir, "log directory")
	fs.StringVar(&cfg.DownloadDir, "o", cfg.DownloadDir, "download directory")
	fs.IntVar(&cfg.MaxParallelUploads, "p", cfg.MaxParallelUploads, "maximum parallel uploads")
	fs.StringVar(&cfg.LogLevel, "v", cfg.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.Backend = strings.ToLower(cfg.Backend)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
}
