package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-m string     metrics bind address (e.g., ":9090")
//	-d string     PostgreSQL DSN or "memory://"
//	-s string     JWT HMAC secret key
//	-t int        session validity, minutes
//	-k string     vault key, base64
//	-n int        max failed logins before lockout
//	-w duration   lockout window (e.g., "60s")
//	-x string     submission backend ("fs" or "s3")
//	-f string     submission store path for the fs backend
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-v string     log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-m", "-d", "-s", "-t", "-k", "-n", "-w", "-x", "-f", "-u", "-p", "-b", "-g", "-e", "-v",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to serve metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidity := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session_validity_duration (in minutes)")

	fs.StringVar(&config.VaultKey, "k", config.VaultKey, "vault key (base64)")
	fs.IntVar(&config.MaxLoginAttempts, "n", config.MaxLoginAttempts, "max failed logins before lockout")
	fs.DurationVar(&config.LockoutWindow, "w", config.LockoutWindow, "lockout window")
	fs.StringVar(&config.SubmissionBackend, "x", config.SubmissionBackend, "submission backend (fs|s3)")
	fs.StringVar(&config.StorePath, "f", config.StorePath, "submission store path")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level (debug|info|warn|error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidity) * time.Minute
}
