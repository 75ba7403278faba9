package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/dropkeeper/internal/flagx"
	"github.com/dmitrijs2005/dropkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Interval fields
// use timex.Duration so both "30s" strings and integer nanoseconds parse.
type JsonConfig struct {
	EndpointAddrGRPC        string         `json:"endpoint_addr_grpc"`
	MetricsAddr             string         `json:"metrics_addr"`
	DatabaseDSN             string         `json:"database_dsn"`
	SecretKey               string         `json:"secret_key"`
	SessionValidityDuration timex.Duration `json:"session_validity_duration"`
	VaultKey                string         `json:"vault_key"`
	MaxLoginAttempts        int            `json:"max_login_attempts"`
	LockoutWindow           timex.Duration `json:"lockout_window"`
	TOTPStep                timex.Duration `json:"totp_step"`
	TOTPSkew                *uint          `json:"totp_skew"`
	HOTPLookAhead           *uint64        `json:"hotp_look_ahead"`
	RSABits                 int            `json:"rsa_bits"`
	FilesystemIDPepper      string         `json:"filesystem_id_pepper"`
	SubmissionBackend       string         `json:"submission_backend"`
	StorePath               string         `json:"store_path"`
	S3RootUser              string         `json:"s3_root_user"`
	S3RootPassword          string         `json:"s3_root_password"`
	S3Bucket                string         `json:"s3_bucket"`
	S3Region                string         `json:"s3_region"`
	S3BaseEndpoint          string         `json:"s3_base_endpoint"`
	LoginRatePerSecond      float64        `json:"login_rate_per_second"`
	LoginRateBurst          int            `json:"login_rate_burst"`
	LogLevel                string         `json:"log_level"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setPositive[T int | int64 | float64](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// parseJson overlays values from the JSON file named by -c / -config or
// DROPKEEPER_CONFIG onto config. Keys that are absent or zero keep their
// current value. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.VaultKey, c.VaultKey)
	setString(&config.FilesystemIDPepper, c.FilesystemIDPepper)
	setString(&config.SubmissionBackend, c.SubmissionBackend)
	setString(&config.StorePath, c.StorePath)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	setPositive((*int64)(&config.SessionValidityDuration), int64(c.SessionValidityDuration.Duration))
	setPositive((*int64)(&config.LockoutWindow), int64(c.LockoutWindow.Duration))
	setPositive((*int64)(&config.TOTPStep), int64(c.TOTPStep.Duration))
	setPositive(&config.MaxLoginAttempts, c.MaxLoginAttempts)
	setPositive(&config.RSABits, c.RSABits)
	setPositive(&config.LoginRatePerSecond, c.LoginRatePerSecond)
	setPositive(&config.LoginRateBurst, c.LoginRateBurst)

	if c.TOTPSkew != nil {
		config.TOTPSkew = *c.TOTPSkew
	}
	if c.HOTPLookAhead != nil {
		config.HOTPLookAhead = *c.HOTPLookAhead
	}
}
