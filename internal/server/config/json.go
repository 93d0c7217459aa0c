package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/payslips/internal/flagx"
	"github.com/dmitrijs2005/payslips/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Absent
// or zero fields leave the current value untouched.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	SecretKey        string `json:"secret_key"`

	StorageBackend string         `json:"storage_backend"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	S3UsePathStyle *bool          `json:"s3_use_path_style"`
	PresignExpiry  timex.Duration `json:"presign_expiry"`

	MaxFileSize     int64 `json:"max_file_size"`
	DefaultPageSize int   `json:"default_page_size"`
	MaxPageSize     int   `json:"max_page_size"`
	ListBatchSize   int   `json:"list_batch_size"`

	OperationTimeout    timex.Duration `json:"operation_timeout"`
	CompensationTimeout timex.Duration `json:"compensation_timeout"`
	BlobRetryAttempts   int            `json:"blob_retry_attempts"`
	BlobRetryBaseDelay  timex.Duration `json:"blob_retry_base_delay"`

	ReservationTTL    timex.Duration `json:"reservation_ttl"`
	JanitorInterval   timex.Duration `json:"janitor_interval"`
	ReadinessInterval timex.Duration `json:"readiness_interval"`
	ShutdownTimeout   timex.Duration `json:"shutdown_timeout"`

	LogLevel string `json:"log_level"`
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

// parseJson loads the file named by -c/-config, if any, into config.
// An unreadable or malformed file panics, as a misconfigured server must not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

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

	set(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.SecretKey, c.SecretKey)

	set(&config.StorageBackend, c.StorageBackend)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	set(&config.PresignExpiry, c.PresignExpiry.Duration)

	set(&config.MaxFileSize, c.MaxFileSize)
	set(&config.DefaultPageSize, c.DefaultPageSize)
	set(&config.MaxPageSize, c.MaxPageSize)
	set(&config.ListBatchSize, c.ListBatchSize)

	set(&config.OperationTimeout, c.OperationTimeout.Duration)
	set(&config.CompensationTimeout, c.CompensationTimeout.Duration)
	set(&config.BlobRetryAttempts, c.BlobRetryAttempts)
	set(&config.BlobRetryBaseDelay, c.BlobRetryBaseDelay.Duration)

	set(&config.ReservationTTL, c.ReservationTTL.Duration)
	set(&config.JanitorInterval, c.JanitorInterval.Duration)
	set(&config.ReadinessInterval, c.ReadinessInterval.Duration)
	set(&config.ShutdownTimeout, c.ShutdownTimeout.Duration)

	set(&config.LogLevel, c.LogLevel)
}
