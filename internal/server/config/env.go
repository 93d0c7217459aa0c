package config

import "github.com/dmitrijs2005/payslips/internal/flagx"

// parseEnv overlays PAYSLIP_* variables. DATABASE_URL, S3_BUCKET_NAME and
// AWS_REGION are honoured as fallbacks so existing deployments keep working.
func parseEnv(config *Config) {
	flagx.EnvString(&config.EndpointAddrHTTP, "PAYSLIP_HTTP_ADDR")
	flagx.EnvString(&config.EndpointAddrGRPC, "PAYSLIP_GRPC_ADDR")
	flagx.EnvString(&config.DatabaseDSN, "PAYSLIP_DATABASE_DSN", "DATABASE_URL")
	flagx.EnvString(&config.SecretKey, "PAYSLIP_SECRET_KEY")

	flagx.EnvString(&config.StorageBackend, "PAYSLIP_STORAGE_BACKEND")
	flagx.EnvString(&config.S3RootUser, "PAYSLIP_S3_ACCESS_KEY")
	flagx.EnvString(&config.S3RootPassword, "PAYSLIP_S3_SECRET_KEY")
	flagx.EnvString(&config.S3Bucket, "PAYSLIP_S3_BUCKET", "S3_BUCKET_NAME")
	flagx.EnvString(&config.S3Region, "PAYSLIP_S3_REGION", "AWS_REGION")
	flagx.EnvString(&config.S3BaseEndpoint, "PAYSLIP_S3_ENDPOINT")
	flagx.EnvBool(&config.S3UsePathStyle, "PAYSLIP_S3_PATH_STYLE")
	flagx.EnvDuration(&config.PresignExpiry, "PAYSLIP_PRESIGN_EXPIRY")

	flagx.EnvInt64(&config.MaxFileSize, "PAYSLIP_MAX_FILE_SIZE")
	flagx.EnvInt(&config.DefaultPageSize, "PAYSLIP_DEFAULT_PAGE_SIZE")
	flagx.EnvInt(&config.MaxPageSize, "PAYSLIP_MAX_PAGE_SIZE")
	flagx.EnvInt(&config.ListBatchSize, "PAYSLIP_LIST_BATCH_SIZE")

	flagx.EnvDuration(&config.OperationTimeout, "PAYSLIP_OPERATION_TIMEOUT")
	flagx.EnvDuration(&config.CompensationTimeout, "PAYSLIP_COMPENSATION_TIMEOUT")
	flagx.EnvInt(&config.BlobRetryAttempts, "PAYSLIP_BLOB_RETRY_ATTEMPTS")
	flagx.EnvDuration(&config.BlobRetryBaseDelay, "PAYSLIP_BLOB_RETRY_BASE_DELAY")

	flagx.EnvDuration(&config.ReservationTTL, "PAYSLIP_RESERVATION_TTL")
	flagx.EnvDuration(&config.JanitorInterval, "PAYSLIP_JANITOR_INTERVAL")
	flagx.EnvDuration(&config.ReadinessInterval, "PAYSLIP_READINESS_INTERVAL")
	flagx.EnvDuration(&config.ShutdownTimeout, "PAYSLIP_SHUTDOWN_TIMEOUT")

	flagx.EnvString(&config.LogLevel, "PAYSLIP_LOG_LEVEL")
}
