package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://legacy")
	t.Setenv("PAYSLIP_S3_PATH_STYLE", "true")
	t.Setenv("PAYSLIP_MAX_FILE_SIZE", "4096")
	t.Setenv("PAYSLIP_MAX_PAGE_SIZE", "not-a-number")
	t.Setenv("PAYSLIP_RESERVATION_TTL", "45m")
	t.Setenv("AWS_REGION", "us-east-2")

	var c Config
	c.LoadDefaults()
	parseEnv(&c)

	assert.Equal(t, "postgres://legacy", c.DatabaseDSN)
	assert.True(t, c.S3UsePathStyle)
	assert.Equal(t, int64(4096), c.MaxFileSize)
	assert.Equal(t, 1000, c.MaxPageSize, "invalid values are ignored")
	assert.Equal(t, 45*time.Minute, c.ReservationTTL)
	assert.Equal(t, "us-east-2", c.S3Region)

	t.Setenv("PAYSLIP_DATABASE_DSN", "postgres://preferred")
	parseEnv(&c)
	assert.Equal(t, "postgres://preferred", c.DatabaseDSN)
}
